package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/whatsapp"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// eventSource is the event half of whatsapp.Client.
type eventSource interface {
	AddEventHandler(fn func(evt interface{})) uint32
	RemoveEventHandler(id uint32)
}

// WhatsAppService implements Service and ImageSender on top of whatsmeow.
type WhatsAppService struct {
	client    whatsapp.Sender
	events    eventSource
	handlerID uint32
	receipts  chan models.Receipt
	responses chan models.Response

	mu      sync.RWMutex
	stopped bool
}

// NewWhatsAppService wraps client. Inbound events are only consumed when
// client is a full *whatsapp.Client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{
		client:    client,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
	if src, ok := client.(eventSource); ok {
		s.events = src
	}
	return s
}

// ValidateAndCanonicalizeRecipient returns the "+digits" form of recipient.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.events == nil {
		slog.Debug("WhatsAppService.Start: no event source, inbound messages disabled")
		return nil
	}
	s.handlerID = s.events.AddEventHandler(s.handleEvent)
	slog.Info("WhatsAppService.Start: event handler registered")
	return nil
}

// Stop unregisters the event handler and closes the channels.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.events != nil {
		s.events.RemoveEventHandler(s.handlerID)
	}
	close(s.receipts)
	close(s.responses)
	slog.Info("WhatsAppService.Stop: stopped and channels closed")
	return nil
}

// SendMessage sends a text message and emits a sent receipt.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if s.isStopped() {
		return ErrServiceStopped
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send failed", "to", canonical, "error", err)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// SendImage sends a PNG when the underlying client supports images.
func (s *WhatsAppService) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	img, ok := s.client.(whatsapp.ImageSender)
	if !ok {
		return ErrImageUnsupported
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if s.isStopped() {
		return ErrServiceStopped
	}
	if err := img.SendImage(ctx, canonical, png, caption); err != nil {
		slog.Error("WhatsAppService.SendImage: send failed", "to", canonical, "error", err)
		return err
	}
	s.emitReceipt(models.Receipt{To: canonical, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// Receipts returns a channel of receipt events.
func (s *WhatsAppService) Receipts() <-chan models.Receipt {
	return s.receipts
}

// Responses returns a channel of incoming messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WhatsAppService) isStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

func (s *WhatsAppService) emitReceipt(r models.Receipt) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	emit(s.receipts, r, "receipt")
}

func (s *WhatsAppService) emitResponse(r models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("WhatsAppService.emitResponse: dropping message after stop", "from", r.From)
		return
	}
	emit(s.responses, r, "response")
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		s.handleIncomingMessage(v)
	case *events.Receipt:
		s.handleMessageReceipt(v)
	}
}

// handleIncomingMessage forwards plain and extended text messages.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	var text string
	switch {
	case evt.Message.GetConversation() != "":
		text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		text = evt.Message.GetExtendedTextMessage().GetText()
	default:
		slog.Debug("WhatsAppService.handleIncomingMessage: ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	from, err := s.ValidateAndCanonicalizeRecipient(evt.Info.Sender.User)
	if err != nil {
		slog.Warn("WhatsAppService.handleIncomingMessage: bad sender", "sender", evt.Info.Sender.String(), "error", err)
		return
	}
	s.emitResponse(models.Response{From: from, Body: text, Time: evt.Info.Timestamp.Unix()})
}

// handleMessageReceipt forwards delivered and read receipts.
func (s *WhatsAppService) handleMessageReceipt(evt *events.Receipt) {
	var status models.MessageStatus
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		status = models.MessageStatusDelivered
	case types.ReceiptTypeRead:
		status = models.MessageStatusRead
	default:
		return
	}
	to, err := s.ValidateAndCanonicalizeRecipient(evt.MessageSource.Chat.User)
	if err != nil {
		return
	}
	s.emitReceipt(models.Receipt{To: to, Status: status, Time: evt.Timestamp.Unix()})
}
