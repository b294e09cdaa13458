// Package api serves HydroPipe over HTTP.
//
// It exposes a health check, the Twilio webhook, a chat endpoint driving the
// conversation engine and read-only progress, history and chart endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/flow"
	"github.com/BTreeMap/HydroPipe/internal/report"
	"github.com/BTreeMap/HydroPipe/internal/store"
	"github.com/BTreeMap/HydroPipe/internal/tracker"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 10 * time.Second
	// maxChatBody caps the chat request body.
	maxChatBody = 16 << 10
	// defaultHistoryDays is used when the days parameter is absent.
	defaultHistoryDays = 7
)

// Chatter handles one chat message. *flow.Engine implements it.
type Chatter interface {
	Handle(ctx context.Context, userID, text string) (flow.Reply, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	AllowedOrigins []string
	Webhook        http.HandlerFunc
	Chart          flow.ChartRenderer
	Receipts       store.ReceiptStore
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAllowedOrigins sets the CORS allowed origins. The default allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(o *Opts) { o.AllowedOrigins = origins }
}

// WithTwilioWebhook mounts h at POST /webhooks/twilio.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.Webhook = h }
}

// WithChartRenderer enables GET /users/{id}/chart.png.
func WithChartRenderer(c flow.ChartRenderer) Option {
	return func(o *Opts) { o.Chart = c }
}

// WithReceiptStore enables GET /receipts.
func WithReceiptStore(rs store.ReceiptStore) Option {
	return func(o *Opts) { o.Receipts = rs }
}

// Server is the HydroPipe HTTP API.
type Server struct {
	opts     Opts
	chat     Chatter
	profiles store.ProfileStore
	reporter  *report.Reporter
	snapshots *snapshotCache
	router    *mux.Router
}

// NewServer wires the routes.
func NewServer(chat Chatter, profiles store.ProfileStore, tr *tracker.Tracker, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, AllowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&cfg)
	}
	reporter := report.NewReporter(tr)
	s := &Server{
		opts:      cfg,
		chat:      chat,
		profiles:  profiles,
		reporter:  reporter,
		snapshots: newSnapshotCache(tr, reporter),
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	if s.opts.Webhook != nil {
		r.HandleFunc("/webhooks/twilio", s.opts.Webhook).Methods(http.MethodPost)
	}
	if s.opts.Receipts != nil {
		r.HandleFunc("/receipts", s.receiptsHandler).Methods(http.MethodGet)
	}
	u := r.PathPrefix("/users/{id}").Subrouter()
	u.HandleFunc("/messages", s.chatHandler).Methods(http.MethodPost)
	u.HandleFunc("/progress", s.progressHandler).Methods(http.MethodGet)
	u.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	u.HandleFunc("/chart.png", s.chartHandler).Methods(http.MethodGet)
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(loggingMiddleware(s.router))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Server.Run: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Server: request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
