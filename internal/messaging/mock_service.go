package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// MockService is an in-process Service for tests. Inject delivers an
// inbound message; sent messages are recorded.
type MockService struct {
	mu        sync.Mutex
	sent      []MockMessage
	receipts  chan models.Receipt
	responses chan models.Response
	stopped   bool
	// SendErr, when set, is returned by every send.
	SendErr error
	// NoImages makes SendImage report ErrImageUnsupported.
	NoImages bool
}

// MockMessage is a message recorded by MockService.
type MockMessage struct {
	To      string
	Body    string
	Image   []byte
	Caption string
}

// NewMockService returns a MockService with buffered channels.
func NewMockService() *MockService {
	return &MockService{
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	return m.record(MockMessage{To: to, Body: body})
}

func (m *MockService) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	if m.NoImages {
		return ErrImageUnsupported
	}
	return m.record(MockMessage{To: to, Image: png, Caption: caption})
}

func (m *MockService) record(msg MockMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrServiceStopped
	}
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, msg)
	select {
	case m.receipts <- models.Receipt{To: msg.To, Status: models.MessageStatusSent, Time: time.Now().Unix()}:
	default:
	}
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.receipts)
	close(m.responses)
	return nil
}

func (m *MockService) Receipts() <-chan models.Receipt { return m.receipts }

func (m *MockService) Responses() <-chan models.Response { return m.responses }

// Inject queues an inbound message as if a user had sent it.
func (m *MockService) Inject(from, body string) {
	m.responses <- models.Response{From: from, Body: body, Time: time.Now().Unix()}
}

// Sent returns a copy of the recorded messages.
func (m *MockService) Sent() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.sent...)
}
