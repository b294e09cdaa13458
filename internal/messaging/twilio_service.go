package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through TwilioWebhookHandler.
type TwilioService struct {
	client       twiliowhatsapp.Sender
	mediaBaseURL string
	receipts     chan models.Receipt
	responses    chan models.Response
	mu           sync.RWMutex
	stopped      bool
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithMediaBaseURL enables chart images. Twilio fetches them from
// <base>/users/{id}/chart.png, which the HTTP API serves.
func WithMediaBaseURL(base string) TwilioOption {
	return func(s *TwilioService) { s.mediaBaseURL = strings.TrimRight(base, "/") }
}

// NewTwilioService wraps client.
func NewTwilioService(client twiliowhatsapp.Sender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient accepts "whatsapp:+1..." as well as plain numbers.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(strings.TrimPrefix(recipient, "whatsapp:"))
}

// Start is a no-op; webhooks are served by the HTTP API.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channels.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.receipts)
	close(s.responses)
	return nil
}

// SendMessage sends a message via Twilio and emits a sent receipt.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	return s.send(ctx, to, body, "")
}

// SendImage asks Twilio to fetch the user's current chart from the HTTP API.
// The png bytes are not uploaded; without a media base URL images are unsupported.
func (s *TwilioService) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	if s.mediaBaseURL == "" {
		return ErrImageUnsupported
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	media := fmt.Sprintf("%s/users/%s/chart.png?ts=%d", s.mediaBaseURL, url.PathEscape(canonical), time.Now().Unix())
	return s.send(ctx, canonical, caption, media)
}

func (s *TwilioService) send(ctx context.Context, to, body, mediaURL string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.send: invalid recipient", "to", to, "error", err)
		return err
	}
	if mediaURL != "" {
		err = s.client.SendMedia(ctx, canonical, body, mediaURL)
	} else {
		err = s.client.SendMessage(ctx, canonical, body)
	}
	if err != nil {
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns the channel of sent receipts.
func (s *TwilioService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns the channel of webhook messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

func (s *TwilioService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

func (s *TwilioService) emitReceipt(r models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	emit(s.receipts, r, "receipt")
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits
// them into the Responses channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService.TwilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	from, body := r.FormValue("From"), r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("TwilioService.TwilioWebhookHandler: missing fields", "fromSet", from != "", "bodySet", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	stopped := s.stopped
	if !stopped {
		emit(s.responses, models.Response{From: canonical, Body: body, Time: time.Now().Unix()}, "response")
	}
	s.mu.RUnlock()
	if stopped {
		http.Error(w, "Service stopped", http.StatusServiceUnavailable)
		return
	}

	slog.Info("TwilioService.TwilioWebhookHandler: inbound message", "from", canonical)
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}
