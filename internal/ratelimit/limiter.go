// Package ratelimit implements token-bucket limiters keyed by caller.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
)

// Limiter decides whether one more request for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucketStore interface {
	TokenBucketAllow(ctx context.Context, scope string, ratePerSecond float64, burst int, now time.Time) (bool, float64, error)
}

// RedisTokenBucket shares buckets across instances. Refill and take run as
// one Lua script, so concurrent requests never overdraw a bucket.
type RedisTokenBucket struct {
	store bucketStore
	rps   float64
	burst int
	now   func() time.Time
}

func NewRedisTokenBucket(store bucketStore, ratePerSecond float64, burst int) *RedisTokenBucket {
	return &RedisTokenBucket{store: store, rps: ratePerSecond, burst: burst, now: time.Now}
}

func (l *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := l.store.TokenBucketAllow(ctx, key, l.rps, l.burst, l.now())
	return allowed, err
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalTokenBucket keeps one in-process bucket per key. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
type LocalTokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*localEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLocalTokenBucket(ratePerSecond float64, burst int, idleTTL time.Duration) *LocalTokenBucket {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &LocalTokenBucket{
		buckets: map[string]*localEntry{},
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (l *LocalTokenBucket) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, entry := range l.buckets {
			if now.Sub(entry.lastSeen) >= l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.buckets[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1), nil
}

// Len reports how many buckets are currently held.
func (l *LocalTokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// New picks the backend named in cfg. Redis is used only when a store is
// supplied; otherwise buckets stay in process.
func New(cfg config.RateLimitConfig, store bucketStore) Limiter {
	rps, burst := cfg.RatePerSecond, cfg.Burst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	if strings.EqualFold(cfg.Backend, "redis") && store != nil {
		return NewRedisTokenBucket(store, rps, burst)
	}
	return NewLocalTokenBucket(rps, burst, 0)
}
