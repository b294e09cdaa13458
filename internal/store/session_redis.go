package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
	goredis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "hydropipe:session:"
	// DefaultSessionTTL bounds how long an abandoned conversation is remembered.
	DefaultSessionTTL = 24 * time.Hour
)

// RedisSessionStore keeps sessions as JSON documents in Redis.
// Per-user calls are serialised by the caller, so read-modify-write is not guarded.
type RedisSessionStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisSessionStore connects to the Redis server at url (redis://...).
func NewRedisSessionStore(ctx context.Context, url string, ttl time.Duration) (*RedisSessionStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	slog.Debug("NewRedisSessionStore: connected", "addr", opts.Addr, "ttl", ttl)
	return &RedisSessionStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisSessionStore) key(userID string) string {
	return redisKeyPrefix + userID
}

func (s *RedisSessionStore) load(ctx context.Context, userID string) (*models.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return &models.Session{UserID: userID, State: models.StateIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", userID, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		slog.Warn("RedisSessionStore.load: dropping undecodable session", "userID", userID, "error", err)
		return &models.Session{UserID: userID, State: models.StateIdle}, nil
	}
	return &sess, nil
}

func (s *RedisSessionStore) save(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.UserID, err)
	}
	if err := s.rdb.Set(ctx, s.key(sess.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *RedisSessionStore) GetState(ctx context.Context, userID string) (models.StateType, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return models.StateIdle, err
	}
	return sess.CurrentState(), nil
}

func (s *RedisSessionStore) SetState(ctx context.Context, userID string, state models.StateType) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	sess, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	sess.State = state
	sess.UpdatedAt = time.Now()
	return s.save(ctx, sess)
}

func (s *RedisSessionStore) GetBuffer(ctx context.Context, userID string) (map[models.DataKey]string, error) {
	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Buffer == nil {
		return make(map[models.DataKey]string), nil
	}
	return sess.Buffer, nil
}

func (s *RedisSessionStore) UpdateBuffer(ctx context.Context, userID string, values map[models.DataKey]string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	sess, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	mergeBuffer(sess, values)
	return s.save(ctx, sess)
}

func (s *RedisSessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del session %s: %w", userID, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisSessionStore) Close() error {
	return s.rdb.Close()
}
