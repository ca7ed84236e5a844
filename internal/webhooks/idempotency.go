package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/redis"
)

// DeliveryGuard records provider deliveries so a retried webhook is
// acknowledged without being applied twice. The claim for id in scope lives
// at hf:idempotency:{scope}:{id} until ttl passes or it is released.
type DeliveryGuard struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
	now   func() time.Time
}

func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*DeliveryGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case scope == "":
		return nil, errors.New("guard scope is required")
	case ttl < 0:
		return nil, fmt.Errorf("guard ttl %s is negative", ttl)
	}
	return &DeliveryGuard{store: store, scope: scope, ttl: ttl, now: time.Now}, nil
}

// Claim returns true for the first delivery of id and false for repeats. The
// stored value is the claim time.
func (g *DeliveryGuard) Claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("delivery id is required")
	}
	first, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, id), g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s delivery: %w", g.scope, err)
	}
	return first, nil
}

// Release forgets a claim after a failed delivery so the retry is applied.
func (g *DeliveryGuard) Release(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delivery id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, id))
}
