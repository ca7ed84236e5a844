package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

type fakeBucketStore struct {
	scopes []string
	allow  bool
	err    error
}

func (f *fakeBucketStore) TokenBucketAllow(_ context.Context, scope string, rps float64, burst int, _ time.Time) (bool, float64, error) {
	f.scopes = append(f.scopes, scope)
	return f.allow, 0, f.err
}

func TestLocalTokenBucketEnforcesBurstPerKey(t *testing.T) {
	l := NewLocalTokenBucket(1, 2, time.Minute)
	now := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Fatalf("third request within the same instant should be blocked")
	}
	if ok, _ := l.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatalf("other keys keep their own bucket")
	}

	now = now.Add(time.Second)
	if ok, _ := l.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatalf("bucket should refill after one second")
	}
}

func TestLocalTokenBucketEvictsIdleKeys(t *testing.T) {
	l := NewLocalTokenBucket(1, 1, time.Minute)
	now := time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a")
	_, _ = l.Allow(ctx, "b")
	if l.Len() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.Len())
	}

	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "c")
	if l.Len() != 1 {
		t.Fatalf("expected idle buckets to be evicted, got %d", l.Len())
	}
}

func TestRedisTokenBucketDelegates(t *testing.T) {
	store := &fakeBucketStore{allow: true}
	l := NewRedisTokenBucket(store, 2, 5)

	ok, err := l.Allow(context.Background(), "status:10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("expected allow, got %v %v", ok, err)
	}
	if len(store.scopes) != 1 || store.scopes[0] != "status:10.0.0.1" {
		t.Fatalf("unexpected scopes %v", store.scopes)
	}

	store.err = errors.New("redis down")
	if _, err := l.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestNewPicksBackend(t *testing.T) {
	if _, ok := New(config.RateLimitConfig{Backend: "redis", RatePerSecond: 1, Burst: 1}, &fakeBucketStore{}).(*RedisTokenBucket); !ok {
		t.Fatalf("expected redis limiter")
	}
	if _, ok := New(config.RateLimitConfig{Backend: "redis"}, nil).(*LocalTokenBucket); !ok {
		t.Fatalf("expected local fallback without a store")
	}
	if _, ok := New(config.RateLimitConfig{Backend: "local"}, &fakeBucketStore{}).(*LocalTokenBucket); !ok {
		t.Fatalf("expected local limiter")
	}
}
