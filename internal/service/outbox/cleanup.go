package outbox

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
	defaultRetention        = 7 * 24 * time.Hour
)

// CleanupOptions задаёт параметры очистки опубликованных событий.
type CleanupOptions struct {
	Logger    *log.Entry
	Metrics   *metrics.ShelterMetrics
	Interval  time.Duration
	BatchSize int
	// Retention — сколько хранить sent-записи после публикации.
	Retention time.Duration
}

// Cleaner периодически удаляет опубликованные события старше Retention.
type Cleaner struct {
	repo      domain.OutboxCleaner
	logger    *log.Entry
	metrics   *metrics.ShelterMetrics
	interval  time.Duration
	batchSize int
	retention time.Duration
	now       func() time.Time
}

// NewCleaner создаёт воркер очистки outbox.
func NewCleaner(repo domain.OutboxCleaner, opts CleanupOptions) *Cleaner {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-cleaner")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultCleanupInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultCleanupBatchSize
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}

	return &Cleaner{
		repo:      repo,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		retention: opts.Retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run запускает периодическую очистку до отмены ctx.
func (c *Cleaner) Run(ctx context.Context) error {
	if c.repo == nil {
		c.logger.Warn("outbox cleaner is disabled: repo is nil")
		return nil
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	deleted, err := c.DeleteSent(ctx, c.now().Add(-c.retention))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.metrics.RecordOutboxCleanup("error", deleted)
		c.logger.WithError(err).Warn("outbox cleanup run failed")
		return
	}

	c.metrics.RecordOutboxCleanup("ok", deleted)
	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("outbox cleanup completed")
	}
}

// DeleteSent удаляет все sent-записи старше before порциями batchSize.
func (c *Cleaner) DeleteSent(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := c.repo.DeleteSentBefore(before, c.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < c.batchSize {
			return total, nil
		}
	}
}
