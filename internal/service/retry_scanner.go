package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

const (
	defaultRetryScanInterval = 30 * time.Second
	defaultRetryScanLimit    = 100
)

// RetryScanner periodically re-enqueues entries whose retry deadline has
// passed.
type RetryScanner struct {
	entries   repository.QueueRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
	now       func() time.Time
}

func NewRetryScanner(
	entries repository.QueueRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		entries:   entries,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	dueEntries, err := s.entries.GetDueForRetry(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range dueEntries {
		entry := dueEntries[i]
		msg := queue.DeliveryMessage{
			EntryID:        entry.ID,
			RecipientID:    entry.RecipientID,
			DeliveryMethod: entry.DeliveryMethod,
			Priority:       entry.Priority,
		}

		queueName := queue.QueueName(entry.DeliveryMethod)
		if err := s.publisher.Publish(ctx, queueName, msg); err != nil {
			s.logger.Error("failed to enqueue retry entry",
				zap.String("entryId", entry.ID),
				zap.String("queue", queueName),
				zap.Error(err),
			)
			continue
		}

		if err := s.entries.ClearNextRetryAt(ctx, entry.ID); err != nil {
			s.logger.Error("failed to clear retry deadline after enqueue",
				zap.String("entryId", entry.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
