package credstore

import (
	"context"
	"testing"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if id, err := s.Get(ctx); err != nil || id != nil {
		t.Fatalf("expected empty store, got %v %v", id, err)
	}

	if _, err := s.Save(ctx, "vendor@example.com", "pw", OriginCreated, "orders"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.RecordUsage(ctx, "multibox"); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	id, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(id.UsedBy) != 2 || id.UsedBy[1] != "multibox" {
		t.Fatalf("unexpected usage %v", id.UsedBy)
	}

	// Mutating the returned copy must not leak into the store.
	id.UsedBy[0] = "tampered"
	again, _ := s.Get(ctx)
	if again.UsedBy[0] != "orders" {
		t.Fatalf("store leaked internal state: %v", again.UsedBy)
	}

	if SaveCount(s) != 1 {
		t.Fatalf("expected one save, got %d", SaveCount(s))
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if id, _ := s.Get(ctx); id != nil {
		t.Fatalf("expected cleared store")
	}
}
