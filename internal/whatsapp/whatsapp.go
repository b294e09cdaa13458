// Package whatsapp wraps the Whatsmeow client used by HydroPipe to talk to users.
//
// It owns the device session database, the login flow and outbound text and
// image messages. Inbound events are consumed by the messaging package.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/BTreeMap/HydroPipe/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

const (
	// DefaultDBFile is the whatsmeow device database inside the state directory.
	DefaultDBFile = "whatsmeow.db"
	// JIDSuffix is the WhatsApp JID server for regular users.
	JIDSuffix = "s.whatsapp.net"
)

var (
	// ErrNotConnected is returned when sending without a live client.
	ErrNotConnected = errors.New("whatsapp client not initialized")
	// ErrEmptyRecipient is returned for a blank recipient.
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
)

// Sender sends text messages. It is the part of Client the messaging layer depends on.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ImageSender is a Sender that can also deliver PNG images.
type ImageSender interface {
	Sender
	SendImage(ctx context.Context, to string, png []byte, caption string) error
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow device database connection string
	QRPath      string // file to write the login QR code to, stdout when empty
	NumericCode bool   // print the raw pairing code instead of a QR code
	LogLevel    string // whatsmeow internal log level
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow device database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode prints the pairing code as text.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// WithLogLevel sets the level of whatsmeow's own logger (DEBUG, INFO, WARN, ERROR).
func WithLogLevel(level string) Option {
	return func(o *Opts) {
		o.LogLevel = strings.ToUpper(level)
	}
}

// Client wraps the Whatsmeow client.
type Client struct {
	waClient *whatsmeow.Client
}

// driverFor picks the database/sql driver whatsmeow should use for dsn.
func driverFor(dsn string) string {
	if store.DetectDSNType(dsn) == store.DSNTypePostgres {
		return store.DSNTypePostgres
	}
	return store.DSNTypeSQLite
}

// NewClient opens the device store, logs in if necessary and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{DBDSN: DefaultDBFile, LogLevel: "INFO"}
	for _, opt := range opts {
		opt(&cfg)
	}
	driver := driverFor(cfg.DBDSN)
	slog.Debug("whatsapp.NewClient: options set", "driver", driver, "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	if driver == store.DSNTypeSQLite && !strings.Contains(cfg.DBDSN, "foreign_keys") {
		slog.Warn("whatsapp.NewClient: SQLite device database without foreign keys; consider adding ?_foreign_keys=on",
			"dsn", cfg.DBDSN)
	}

	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, waLog.Stdout("Database", cfg.LogLevel, true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}
	waClient := whatsmeow.NewClient(device, waLog.Stdout("Client", cfg.LogLevel, true))

	if waClient.Store.ID != nil {
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
		slog.Info("whatsapp.NewClient: connected with stored session")
		return &Client{waClient: waClient}, nil
	}

	if err := login(ctx, waClient, cfg); err != nil {
		return nil, err
	}
	slog.Info("whatsapp.NewClient: logged in and connected")
	return &Client{waClient: waClient}, nil
}

// login runs the QR pairing flow until whatsmeow reports an outcome.
func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("whatsapp.login: login required, starting QR flow")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to open QR channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	out := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		out = f
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if cfg.NumericCode {
				fmt.Fprintln(out, evt.Code)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
			}
		case "success":
			return nil
		default:
			slog.Info("whatsapp.login: login event", "event", evt.Event)
		}
	}
	if waClient.Store.ID == nil {
		return errors.New("whatsapp login did not complete")
	}
	return nil
}

func (c *Client) ready(to string) (types.JID, error) {
	if c == nil || c.waClient == nil || c.waClient.Store == nil {
		return types.JID{}, ErrNotConnected
	}
	if to == "" {
		return types.JID{}, ErrEmptyRecipient
	}
	return types.NewJID(strings.TrimPrefix(to, "+"), JIDSuffix), nil
}

// SendMessage sends a text message to an E.164 number.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	jid, err := c.ready(to)
	if err != nil {
		return err
	}
	if body == "" {
		return errors.New("message body cannot be empty")
	}
	if _, err := c.waClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)}); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("whatsapp.SendMessage: sent", "to", to, "bodyLength", len(body))
	return nil
}

// SendImage uploads png to the WhatsApp media servers and sends it with caption.
func (c *Client) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	jid, err := c.ready(to)
	if err != nil {
		return err
	}
	if len(png) == 0 {
		return errors.New("image cannot be empty")
	}
	up, err := c.waClient.Upload(ctx, png, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("failed to upload image for %s: %w", to, err)
	}
	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption:       proto.String(caption),
		Mimetype:      proto.String(http.DetectContentType(png)),
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
	}}
	if _, err := c.waClient.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("failed to send image to %s: %w", to, err)
	}
	slog.Debug("whatsapp.SendImage: sent", "to", to, "bytes", len(png))
	return nil
}

// AddEventHandler registers fn for whatsmeow events.
func (c *Client) AddEventHandler(fn func(evt interface{})) uint32 {
	return c.waClient.AddEventHandler(whatsmeow.EventHandler(fn))
}

// RemoveEventHandler unregisters a handler added with AddEventHandler.
func (c *Client) RemoveEventHandler(id uint32) {
	c.waClient.RemoveEventHandler(id)
}

// Disconnect closes the websocket connection.
func (c *Client) Disconnect() {
	if c != nil && c.waClient != nil {
		c.waClient.Disconnect()
	}
}

// SentMessage is a message recorded by MockClient.
type SentMessage struct {
	To      string
	Body    string
	Image   []byte
	Caption string
}

// MockClient records outbound messages instead of sending them.
type MockClient struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	return m.record(SentMessage{To: to, Body: body})
}

func (m *MockClient) SendImage(ctx context.Context, to string, png []byte, caption string) error {
	return m.record(SentMessage{To: to, Image: png, Caption: caption})
}

func (m *MockClient) record(msg SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}
