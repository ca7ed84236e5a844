package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
)

const (
	defaultRetentionDays  = 30
	defaultRetentionEvery = 24 * time.Hour
	// Rows that never published are kept until they exhausted this many
	// attempts; the DLQ holds their copy.
	defaultDeadAttempts = 10
)

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPurger
	Retention   int
	MinAttempts int
	Every       time.Duration
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// OutboxRetentionJob purges outbox_events rows older than the retention
// window: published rows, and rows that were dead-lettered.
type OutboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPurger
	days        int
	minAttempts int
	every       time.Duration
	now         func() time.Time
}

func NewOutboxRetentionJob(p OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	switch {
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case p.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case p.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	j := &OutboxRetentionJob{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		days:        p.Retention,
		minAttempts: p.MinAttempts,
		every:       p.Every,
		now:         time.Now,
	}
	if j.days <= 0 {
		j.days = defaultRetentionDays
	}
	if j.minAttempts <= 0 {
		j.minAttempts = defaultDeadAttempts
	}
	if j.every <= 0 {
		j.every = defaultRetentionEvery
	}
	return j, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Every() time.Duration { return j.every }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("purge outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox.retention.done")
	return nil
}
