package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "+12345", "Hello Test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.SendMedia(ctx, "+12345", "chart", "https://example.com/c.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := mock.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "Hello Test" || msgs[0].MediaURL != "" {
		t.Errorf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].MediaURL != "https://example.com/c.png" {
		t.Errorf("unexpected second message %+v", msgs[1])
	}
}

func TestWhatsappAddress(t *testing.T) {
	if got := whatsappAddress("+15550100"); got != "whatsapp:+15550100" {
		t.Errorf("got %q", got)
	}
	if got := whatsappAddress("whatsapp:+1"); got != "whatsapp:+1" {
		t.Errorf("got %q", got)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without sender number")
	}
	c, err := NewClient(WithAccountSID("AC1"), WithAuthToken("tok"), WithFromWhats("+15550000"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.fromWhats != "whatsapp:+15550000" {
		t.Errorf("fromWhats = %q", c.fromWhats)
	}
}
