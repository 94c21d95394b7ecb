package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memStore is a map-backed Store; entries never expire.
type memStore struct {
	values map[string]any
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	s.ttls[key] = ttl
	return true, nil
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *memStore) IdempotencyKey(scope, id string) string {
	return "ls:idempotency:" + scope + ":" + id
}

func TestCheckAndMarkProcessedLifecycle(t *testing.T) {
	store := newMemStore()
	manager, err := NewManager(store, 6*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	eventID := uuid.New()
	key := "ls:idempotency:consumer:analytics:" + eventID.String()

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	if store.ttls[key] != 6*time.Hour {
		t.Fatalf("expected marker %s with 6h ttl, got %v", key, store.ttls)
	}

	seen, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	if err != nil || !seen {
		t.Fatalf("redelivery: seen=%v err=%v", seen, err)
	}

	// A different consumer keeps its own markers.
	if seen, _ := manager.CheckAndMarkProcessed(ctx, "audit", eventID); seen {
		t.Fatal("markers must be scoped per consumer")
	}

	if err := manager.Delete(ctx, "analytics", eventID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if seen, _ := manager.CheckAndMarkProcessed(ctx, "analytics", eventID); seen {
		t.Fatal("deleted marker should allow reprocessing")
	}
}

func TestCheckAndMarkProcessedPropagatesStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("redis down")
	manager, _ := NewManager(store, time.Hour)
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "analytics", uuid.New()); err == nil {
		t.Fatal("expected store error")
	}
}

func TestNewManagerDefaults(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewManager(newMemStore(), -time.Second); err == nil {
		t.Fatal("expected negative ttl error")
	}
	manager, err := NewManager(newMemStore(), 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if manager.ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", manager.ttl)
	}
}

func TestKeyValidation(t *testing.T) {
	manager, _ := NewManager(newMemStore(), time.Hour)
	ctx := context.Background()
	if _, err := manager.CheckAndMarkProcessed(ctx, "  ", uuid.New()); !errors.Is(err, ErrConsumerRequired) {
		t.Fatalf("expected ErrConsumerRequired, got %v", err)
	}
	if err := manager.Delete(ctx, "analytics", uuid.Nil); !errors.Is(err, ErrEventIDRequired) {
		t.Fatalf("expected ErrEventIDRequired, got %v", err)
	}
}
