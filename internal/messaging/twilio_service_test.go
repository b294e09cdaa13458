package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BTreeMap/HydroPipe/internal/twiliowhatsapp"
)

func postForm(t *testing.T, h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTwilioWebhookHandler(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"whatsapp:+15550100000"}, "Body": {"/start"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "+15550100000" || resp.Body != "/start" {
			t.Errorf("unexpected response %+v", resp)
		}
	default:
		t.Fatal("expected a response")
	}

	if rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"whatsapp:+15550100000"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing body: status = %d", rec.Code)
	}
	if rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"abc"}, "Body": {"x"}}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad sender: status = %d", rec.Code)
	}

	_ = svc.Stop()
	if rec := postForm(t, svc.TwilioWebhookHandler, url.Values{"From": {"+15550100000"}, "Body": {"x"}}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("after stop: status = %d", rec.Code)
	}
}

func TestTwilioService_SendMessageAndImage(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	ctx := context.Background()

	plain := NewTwilioService(mock)
	if err := plain.SendMessage(ctx, "whatsapp:+15550100000", "hi"); err != nil {
		t.Fatal(err)
	}
	if rc := <-plain.Receipts(); rc.To != "+15550100000" {
		t.Errorf("unexpected receipt %+v", rc)
	}
	if err := plain.SendImage(ctx, "+15550100000", []byte("png"), "c"); !errors.Is(err, ErrImageUnsupported) {
		t.Errorf("expected ErrImageUnsupported, got %v", err)
	}

	media := NewTwilioService(mock, WithMediaBaseURL("https://hydro.example.com/"))
	if err := media.SendImage(ctx, "+15550100000", []byte("png"), "Progress"); err != nil {
		t.Fatal(err)
	}
	msgs := mock.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[1].MediaURL, "https://hydro.example.com/users/+15550100000/chart.png") {
		t.Errorf("unexpected media url %q", msgs[1].MediaURL)
	}
	if msgs[1].Body != "Progress" {
		t.Errorf("caption not sent as body: %+v", msgs[1])
	}

	_ = plain.Stop()
	if err := plain.SendMessage(ctx, "+15550100000", "x"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
