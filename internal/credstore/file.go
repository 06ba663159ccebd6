package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps the identity in a single JSON document. The in-process
// mutex serialises goroutines; the sidecar flock serialises test processes on
// the same host.
type FileStore struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore builds a store backed by path. The file need not exist.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the location of the session document.
func (s *FileStore) Path() string {
	return s.path
}

// Get loads the identity. A missing or malformed document is not an error.
func (s *FileStore) Get(_ context.Context) (*Identity, error) {
	return s.read()
}

// Save overwrites the document with a fresh identity used by module.
func (s *FileStore) Save(ctx context.Context, email, password string, origin Origin, module string) (Identity, error) {
	id := newIdentity(email, password, origin, module, s.now())
	err := s.withLock(ctx, func() error {
		return s.write(id)
	})
	if err != nil {
		return Identity{}, err
	}
	s.logger.Info("session saved", slog.String("email", email), slog.String("account_type", string(origin)), slog.String("path", s.path))
	return id, nil
}

// RecordUsage appends module to the identity's usage list.
func (s *FileStore) RecordUsage(ctx context.Context, module string) error {
	return s.withLock(ctx, func() error {
		id, err := s.read()
		if err != nil {
			return err
		}
		if id == nil || !appendUsage(id, module) {
			return nil
		}
		return s.write(*id)
	})
}

// Clear removes the document. Clearing an absent document succeeds.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.withLock(ctx, func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, s.path, err)
		}
		s.logger.Info("session cleared", slog.String("path", s.path))
		return nil
	})
}

func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create session dir: %v", ErrUnavailable, err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrUnavailable, s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w: lock %s not acquired", ErrUnavailable, s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("release session lock", slog.Any("error", err))
		}
	}()

	return fn()
}

func (s *FileStore) read() (*Identity, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	id := decode(raw)
	if id == nil {
		s.logger.Warn("ignoring malformed session document", slog.String("path", s.path))
	}
	return id, nil
}

// write replaces the document atomically and syncs it before returning.
func (s *FileStore) write(id Identity) error {
	payload, err := encode(id)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write session: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync session: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close session: %v", ErrUnavailable, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod session: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace session: %v", ErrUnavailable, err)
	}
	return nil
}
