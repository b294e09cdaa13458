package store

import (
	"context"
	"sync"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
)

// SessionStore holds each user's conversation state and transient input buffer.
// A user with no session is Idle with an empty buffer.
type SessionStore interface {
	GetState(ctx context.Context, userID string) (models.StateType, error)
	SetState(ctx context.Context, userID string, state models.StateType) error
	GetBuffer(ctx context.Context, userID string) (map[models.DataKey]string, error)
	// UpdateBuffer merges values into the buffer; an empty value deletes the key.
	UpdateBuffer(ctx context.Context, userID string, values map[models.DataKey]string) error
	// Clear resets the user to Idle and drops the buffer.
	Clear(ctx context.Context, userID string) error
}

// InMemorySessionStore keeps sessions in process memory.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// NewInMemorySessionStore creates an empty session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*models.Session)}
}

func (s *InMemorySessionStore) GetState(ctx context.Context, userID string) (models.StateType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID].CurrentState(), nil
}

func (s *InMemorySessionStore) SetState(ctx context.Context, userID string, state models.StateType) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	sess.State = state
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *InMemorySessionStore) GetBuffer(ctx context.Context, userID string) (map[models.DataKey]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.DataKey]string)
	if sess, ok := s.sessions[userID]; ok {
		for k, v := range sess.Buffer {
			out[k] = v
		}
	}
	return out, nil
}

func (s *InMemorySessionStore) UpdateBuffer(ctx context.Context, userID string, values map[models.DataKey]string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mergeBuffer(s.session(userID), values)
	return nil
}

func (s *InMemorySessionStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// session returns the user's session, creating it. Caller holds mu.
func (s *InMemorySessionStore) session(userID string) *models.Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &models.Session{UserID: userID, State: models.StateIdle}
		s.sessions[userID] = sess
	}
	return sess
}

func mergeBuffer(sess *models.Session, values map[models.DataKey]string) {
	if sess.Buffer == nil {
		sess.Buffer = make(map[models.DataKey]string, len(values))
	}
	for k, v := range values {
		if v == "" {
			delete(sess.Buffer, k)
			continue
		}
		sess.Buffer[k] = v
	}
	sess.UpdatedAt = time.Now()
}
