package credstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryStore struct {
	mu    sync.RWMutex
	ident *Identity
	saves int
}

// NewMemoryStore builds an in-process store for tests and single-process runs.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Get(_ context.Context) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ident == nil {
		return nil, nil
	}
	cp := *s.ident
	cp.UsedBy = slices.Clone(s.ident.UsedBy)
	return &cp, nil
}

func (s *memoryStore) Save(_ context.Context, email, password string, origin Origin, module string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newIdentity(email, password, origin, module, time.Now())
	s.ident = &id
	s.saves++
	out := id
	out.UsedBy = slices.Clone(id.UsedBy)
	return out, nil
}

func (s *memoryStore) RecordUsage(_ context.Context, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ident != nil {
		appendUsage(s.ident, module)
	}
	return nil
}

func (s *memoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ident = nil
	return nil
}
