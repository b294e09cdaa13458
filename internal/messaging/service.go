// Package messaging connects chat transports to the conversation engine.
//
// A Service delivers outbound messages and exposes inbound responses and
// delivery receipts as channels. The Router consumes those channels, feeds
// each user's messages to the engine in order and sends the replies back.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer of the receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an event may wait for a full channel.
	DefaultChannelTimeout = 1 * time.Second
	// minPhoneDigits is the shortest accepted phone number.
	minPhoneDigits = 6
)

var (
	// ErrServiceStopped is returned when sending through a stopped service.
	ErrServiceStopped = errors.New("messaging service stopped")
	// ErrImageUnsupported is returned by SendImage when the transport cannot deliver images.
	ErrImageUnsupported = errors.New("image messages not supported by transport")
)

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient turns a transport address into the
	// "+digits" user id used across HydroPipe.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., event handlers).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the event channels.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response
}

// ImageSender is implemented by services that can deliver chart images.
type ImageSender interface {
	SendImage(ctx context.Context, to string, png []byte, caption string) error
}

// CanonicalizePhone strips everything but digits and prefixes "+".
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	digits := phoneNumberRegex.ReplaceAllString(recipient, "")
	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < minPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", digits, minPhoneDigits)
	}
	canonical := "+" + digits
	if canonical != recipient {
		slog.Debug("CanonicalizePhone: recipient canonicalized", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// emit pushes v into ch, dropping it after DefaultChannelTimeout.
func emit[T any](ch chan<- T, v T, what string) {
	select {
	case ch <- v:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("messaging.emit: channel blocked, dropping event", "kind", what, "timeout", DefaultChannelTimeout)
	}
}
