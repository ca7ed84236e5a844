package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 55 * time.Second

// Lock keeps two worker replicas from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, value string) (bool, error)
}

// CycleLease is a Lock backed by a single expiring key. The stored value names
// the holder so operators can see which replica owns the cycle.
type CycleLease struct {
	store  leaseStore
	key    string
	ttl    time.Duration
	holder string
	token  string
}

// NewCycleLease builds a lease on key. holder is usually the instance id.
func NewCycleLease(store leaseStore, key, holder string, ttl time.Duration) (*CycleLease, error) {
	switch {
	case store == nil:
		return nil, errors.New("lease store is required")
	case key == "":
		return nil, errors.New("lease key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if holder == "" {
		holder = "cron"
	}
	return &CycleLease{store: store, key: key, ttl: ttl, holder: holder}, nil
}

func (l *CycleLease) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + "/" + uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if won {
		l.token = token
	}
	return won, nil
}

// Release drops the key only while it still carries this lease's token; a
// lease that already expired leaves the next holder alone.
func (l *CycleLease) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.DeleteIfValue(ctx, l.key, token); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
