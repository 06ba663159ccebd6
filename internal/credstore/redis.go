package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 5

// RedisStore keeps the same JSON document as FileStore under a single key, for
// runs whose test processes share a Redis instance instead of a filesystem.
type RedisStore struct {
	client *redis.Client
	key    string
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisStore builds a store persisting under key.
func NewRedisStore(client *redis.Client, key string, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, key: key, logger: logger, now: time.Now}
}

// Get loads the identity; a missing or malformed value is not an error.
func (s *RedisStore) Get(ctx context.Context) (*Identity, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, s.key, err)
	}
	id := decode(raw)
	if id == nil {
		s.logger.Warn("ignoring malformed session value", slog.String("key", s.key))
	}
	return id, nil
}

// Save overwrites the value with a fresh identity used by module.
func (s *RedisStore) Save(ctx context.Context, email, password string, origin Origin, module string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newIdentity(email, password, origin, module, s.now())
	payload, err := encode(id)
	if err != nil {
		return Identity{}, fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return Identity{}, fmt.Errorf("%w: set %s: %v", ErrUnavailable, s.key, err)
	}
	s.logger.Info("session saved", slog.String("email", email), slog.String("account_type", string(origin)), slog.String("key", s.key))
	return id, nil
}

// RecordUsage appends module under an optimistic WATCH transaction so that
// concurrent writers from other processes are retried, not overwritten.
func (s *RedisStore) RecordUsage(ctx context.Context, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		id := decode(raw)
		if id == nil || !appendUsage(id, module) {
			return nil
		}
		payload, err := encode(*id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("%w: record usage %s: %v", ErrUnavailable, s.key, err)
		}
	}
	return fmt.Errorf("%w: record usage %s: too much contention", ErrUnavailable, s.key)
}

// Clear deletes the key. Deleting a missing key succeeds.
func (s *RedisStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrUnavailable, s.key, err)
	}
	return nil
}
