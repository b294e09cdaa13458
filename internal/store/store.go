// Package store provides storage backends for HydroPipe.
//
// Profiles (with their daily records) and delivery receipts live behind
// ProfileStore and ReceiptStore, with in-memory, SQLite and PostgreSQL
// implementations. Conversation sessions live behind SessionStore, with
// in-memory and Redis implementations.
package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// ProfileStore persists user profiles keyed by user id.
// Get returns a copy; callers must Put after mutating it.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Put(ctx context.Context, profile *models.UserProfile) error
	Contains(ctx context.Context, userID string) (bool, error)
}

// ReceiptStore records outbound delivery receipts.
type ReceiptStore interface {
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
}

// Store is a full profile backend.
type Store interface {
	ProfileStore
	ReceiptStore
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // data source name for SQL backends
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithDSN sets the DSN for any SQL backend.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the DSN for the SQLite store.
func WithSQLiteDSN(dsn string) Option { return WithDSN(dsn) }

// WithPostgresDSN sets the DSN for the Postgres store.
func WithPostgresDSN(dsn string) Option { return WithDSN(dsn) }

// InMemoryStore keeps profiles and receipts in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	receipts []models.Receipt
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]*models.UserProfile)}
}

// Get returns a deep copy of the stored profile.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// Put stores a deep copy of profile, replacing any previous version.
func (s *InMemoryStore) Put(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	s.profiles[profile.UserID] = profile.Clone()
	s.mu.Unlock()
	slog.Debug("InMemoryStore.Put: profile stored", "userID", profile.UserID, "days", len(profile.DailyStats))
	return nil
}

// Contains reports whether a profile exists for userID.
func (s *InMemoryStore) Contains(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[userID]
	return ok, nil
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	s.receipts = append(s.receipts, r)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.receipts...), nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
