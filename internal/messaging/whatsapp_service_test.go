package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/whatsapp"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestServicesImplementInterfaces(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
	var _ Service = (*MockService)(nil)
	var _ ImageSender = (*WhatsAppService)(nil)
	var _ ImageSender = (*TwilioService)(nil)
	var _ ImageSender = (*MockService)(nil)
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 010-0000", "+15550100000", false},
		{"15550100000", "+15550100000", false},
		{"", "", true},
		{"abc", "", true},
		{"+123", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizePhone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CanonicalizePhone(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWhatsAppService_SendMessage_Receipt(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	if err := svc.SendMessage(context.Background(), "15550100000", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "+15550100000" || receipt.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt %+v", receipt)
		}
	default:
		t.Fatal("expected receipt, got none")
	}
	if sent := mock.Sent(); len(sent) != 1 || sent[0].To != "+15550100000" {
		t.Errorf("unexpected sent messages %+v", sent)
	}
}

func TestWhatsAppService_SendImage(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	if err := svc.SendImage(context.Background(), "+15550100000", []byte("png"), "chart"); err != nil {
		t.Fatal(err)
	}
	sent := mock.Sent()
	if len(sent) != 1 || string(sent[0].Image) != "png" || sent[0].Caption != "chart" {
		t.Errorf("unexpected sent messages %+v", sent)
	}
}

type textOnlySender struct{}

func (textOnlySender) SendMessage(ctx context.Context, to, body string) error { return nil }

func TestWhatsAppService_SendImageUnsupported(t *testing.T) {
	svc := NewWhatsAppService(textOnlySender{})
	err := svc.SendImage(context.Background(), "+15550100000", []byte("png"), "")
	if !errors.Is(err, ErrImageUnsupported) {
		t.Errorf("expected ErrImageUnsupported, got %v", err)
	}
}

func TestWhatsAppService_IncomingEvents(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	now := time.Now()
	sender := types.NewJID("15550100000", whatsapp.JIDSuffix)

	svc.handleEvent(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender, Chat: sender}, Timestamp: now},
		Message: &waE2E.Message{Conversation: proto.String("/log_water 250")},
	})
	svc.handleEvent(&events.Message{
		Info: types.MessageInfo{MessageSource: types.MessageSource{Sender: sender, Chat: sender}, Timestamp: now},
		Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String("hello"),
		}},
	})
	svc.handleEvent(&events.Message{
		Info:    types.MessageInfo{MessageSource: types.MessageSource{Sender: sender, Chat: sender, IsFromMe: true}},
		Message: &waE2E.Message{Conversation: proto.String("echo")},
	})
	svc.handleEvent(&events.Receipt{
		MessageSource: types.MessageSource{Sender: sender, Chat: sender},
		Type:          types.ReceiptTypeRead,
		Timestamp:     now,
	})

	for _, want := range []string{"/log_water 250", "hello"} {
		select {
		case resp := <-svc.Responses():
			if resp.From != "+15550100000" || resp.Body != want {
				t.Errorf("unexpected response %+v, want body %q", resp, want)
			}
		default:
			t.Fatalf("expected response %q", want)
		}
	}
	select {
	case resp := <-svc.Responses():
		t.Errorf("own message must be ignored, got %+v", resp)
	default:
	}
	select {
	case rc := <-svc.Receipts():
		if rc.Status != models.MessageStatusRead {
			t.Errorf("unexpected receipt %+v", rc)
		}
	default:
		t.Fatal("expected read receipt")
	}
}

func TestWhatsAppService_StartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
	if _, ok := <-svc.Receipts(); ok {
		t.Error("expected receipts channel closed")
	}
	if _, ok := <-svc.Responses(); ok {
		t.Error("expected responses channel closed")
	}
	if err := svc.SendMessage(context.Background(), "+15550100000", "x"); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
