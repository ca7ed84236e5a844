package webhooks

import (
	"context"
	"sync"
	"testing"
	"time"
)

type claimEntry struct {
	value any
	ttl   time.Duration
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]claimEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]claimEntry{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = claimEntry{value: value, ttl: ttl}
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "hf:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestDeliveryGuardClaimsOnce(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewDeliveryGuard(store, time.Hour, "pix-webhook")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	guard.now = func() time.Time { return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := guard.Claim(ctx, "E123")
	if err != nil || !first {
		t.Fatalf("first delivery: first=%v err=%v", first, err)
	}
	first, err = guard.Claim(ctx, "E123")
	if err != nil || first {
		t.Fatalf("repeat delivery should not be first: first=%v err=%v", first, err)
	}

	entry := store.data["hf:idempotency:pix-webhook:E123"]
	if entry.ttl != time.Hour {
		t.Fatalf("unexpected ttl %s", entry.ttl)
	}
	if entry.value != "2025-03-04T12:00:00Z" {
		t.Fatalf("claim should store its time, got %v", entry.value)
	}

	if err := guard.Release(ctx, "E123"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first, _ = guard.Claim(ctx, "E123"); !first {
		t.Fatalf("released delivery should be claimable again")
	}
}

func TestDeliveryGuardValidation(t *testing.T) {
	if _, err := NewDeliveryGuard(nil, time.Hour, "x"); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := NewDeliveryGuard(newMemoryStore(), -time.Second, "x"); err == nil {
		t.Fatalf("expected ttl error")
	}
	if _, err := NewDeliveryGuard(newMemoryStore(), time.Hour, ""); err == nil {
		t.Fatalf("expected scope error")
	}
	guard, _ := NewDeliveryGuard(newMemoryStore(), time.Hour, "x")
	if _, err := guard.Claim(context.Background(), ""); err == nil {
		t.Fatalf("expected id error")
	}
	if err := guard.Release(context.Background(), ""); err == nil {
		t.Fatalf("expected id error")
	}
}
