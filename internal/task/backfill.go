package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// DefaultRetryAfter is how long an avatar whose conversion failed is left out
// of the backfill.
const DefaultRetryAfter = 24 * time.Hour

// MissingFormatLister lists avatars that have only one of their two files.
type MissingFormatLister interface {
	ListMissingFormats(ctx context.Context, limit int, failedSince time.Time) ([]*domain.Avatar, error)
}

// Backfill periodically submits conversion tasks for avatars missing a format,
// catching conversions that failed or were never queued.
type Backfill struct {
	avatars   MissingFormatLister
	factory   TaskCreator
	runner    TaskSubmitter
	batchSize  int
	retryAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

// NewBackfill creates a backfill submitting up to batchSize tasks per run.
// Avatars whose conversion failed less than retryAfter ago are skipped.
func NewBackfill(
	avatars MissingFormatLister,
	factory TaskCreator,
	runner TaskSubmitter,
	batchSize int,
	retryAfter time.Duration,
	logger *slog.Logger,
) *Backfill {
	if batchSize <= 0 {
		batchSize = 50
	}
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{
		avatars:    avatars,
		factory:    factory,
		runner:     runner,
		batchSize:  batchSize,
		retryAfter: retryAfter,
		logger:     logger.With("component", "conversion_backfill"),
		now:        time.Now,
		cron:       cron.New(),
	}
}

// Start schedules RunOnce using a cron expression such as "@every 15m".
func (b *Backfill) Start(schedule string) error {
	id, err := b.cron.AddFunc(schedule, func() {
		if _, err := b.RunOnce(context.Background()); err != nil {
			b.logger.Error("conversion backfill failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backfill schedule %q: %w", schedule, err)
	}
	b.entryID = id
	b.cron.Start()
	b.logger.Info("conversion backfill scheduled", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running backfill to finish.
func (b *Backfill) Stop() {
	<-b.cron.Stop().Done()
}

// RunOnce submits a conversion task for each avatar missing a format and
// returns how many were submitted. Overlapping runs are skipped.
func (b *Backfill) RunOnce(ctx context.Context) (int, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return 0, nil
	}
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	avatars, err := b.avatars.ListMissingFormats(ctx, b.batchSize, b.now().Add(-b.retryAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to list avatars missing a format: %w", err)
	}

	submitted := 0
	for _, a := range avatars {
		t, err := b.factory.CreateTask(a.ID)
		if err != nil {
			b.logger.Error("failed to create conversion task", "avatar_id", a.ID, "error", err)
			continue
		}
		if err := b.runner.Submit(ctx, t); err != nil {
			if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrRunnerStopped) {
				b.logger.Warn("stopping backfill early", "submitted", submitted, "reason", err.Error())
				break
			}
			b.logger.Error("failed to submit conversion task", "avatar_id", a.ID, "error", err)
			continue
		}
		submitted++
	}

	if submitted > 0 {
		b.logger.Info("conversion backfill submitted tasks", "count", submitted)
	}
	return submitted, nil
}
