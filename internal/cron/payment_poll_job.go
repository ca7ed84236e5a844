package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/hydrofarm-backend/internal/reconcile"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/enums"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

const (
	defaultPollLookback = 48 * time.Hour
	defaultPollBatch    = 100
	defaultPollWorkers  = 4
)

type pendingOrders interface {
	ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Order, error)
}

type pendingSubscriptions interface {
	ListAwaitingPayment(ctx context.Context, since time.Time, limit int) ([]models.Subscription, error)
}

type statusChecker interface {
	PollPaymentStatus(ctx context.Context, target reconcile.Target) (*reconcile.StatusResult, error)
}

type PaymentPollJobParams struct {
	Logger        *logger.Logger
	Orders        pendingOrders
	Subscriptions pendingSubscriptions
	Checker       statusChecker
	Lookback      time.Duration
	BatchSize     int
	Workers       int
}

// NewPaymentPollJob builds the safety net for lost webhooks: every entity
// still awaiting payment inside the lookback window gets a status check.
func NewPaymentPollJob(params PaymentPollJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil || params.Subscriptions == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if params.Checker == nil {
		return nil, fmt.Errorf("status checker required")
	}
	job := &paymentPollJob{
		logg:     params.Logger,
		orders:   params.Orders,
		subs:     params.Subscriptions,
		checker:  params.Checker,
		lookback: params.Lookback,
		batch:    params.BatchSize,
		workers:  params.Workers,
		now:      time.Now,
	}
	if job.lookback <= 0 {
		job.lookback = defaultPollLookback
	}
	if job.batch <= 0 {
		job.batch = defaultPollBatch
	}
	if job.workers <= 0 {
		job.workers = defaultPollWorkers
	}
	return job, nil
}

type paymentPollJob struct {
	logg     *logger.Logger
	orders   pendingOrders
	subs     pendingSubscriptions
	checker  statusChecker
	lookback time.Duration
	batch    int
	workers  int
	now      func() time.Time
}

func (j *paymentPollJob) Name() string { return "payment-poll" }

func (j *paymentPollJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)

	orders, err := j.orders.ListAwaitingPayment(ctx, since, j.batch)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	subs, err := j.subs.ListAwaitingPayment(ctx, since, j.batch)
	if err != nil {
		return fmt.Errorf("list pending subscriptions: %w", err)
	}

	targets := make([]reconcile.Target, 0, len(orders)+len(subs))
	for _, o := range orders {
		targets = append(targets, reconcile.Target{Type: enums.EntityOrder, ID: o.ID})
	}
	for _, s := range subs {
		targets = append(targets, reconcile.Target{Type: enums.EntitySubscription, ID: s.ID})
	}

	var (
		mu        sync.Mutex
		failures  error
		confirmed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.workers)
	for _, target := range targets {
		g.Go(func() error {
			res, err := j.checker.PollPaymentStatus(gctx, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = multierr.Append(failures, fmt.Errorf("%s %s: %w", target.Type, target.ID, err))
				return nil
			}
			if res != nil && res.Status == reconcile.StatusConfirmed && !res.AlreadyConfirmed {
				confirmed++
			}
			return nil
		})
	}
	_ = g.Wait()

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":         since,
		"orders":        len(orders),
		"subscriptions": len(subs),
		"confirmed":     confirmed,
		"failed":        len(multierr.Errors(failures)),
	})
	j.logg.Info(logCtx, "payment poll complete")
	return failures
}
