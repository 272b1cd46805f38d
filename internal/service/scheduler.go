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
	defaultDispatchScanInterval = 30 * time.Second
	defaultDispatchScanLimit    = 100
)

// DispatchScanner publishes entries whose scheduled time has arrived: deferred
// quiet-hours deliveries and entries whose original publish failed.
type DispatchScanner struct {
	entries   repository.QueueRepository
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	limit     int
	now       func() time.Time
}

func NewDispatchScanner(
	entries repository.QueueRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*DispatchScanner, error) {
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultDispatchScanInterval
	}
	if limit <= 0 {
		limit = defaultDispatchScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchScanner{
		entries:   entries,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		limit:     limit,
		now:       time.Now,
	}, nil
}

func (s *DispatchScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due entries do not wait for the first
	// ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("dispatch scanner initial scan failed", zap.Error(err))
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
				s.logger.Error("dispatch scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *DispatchScanner) scanDue(ctx context.Context) error {
	dueEntries, err := s.entries.GetDueForDispatch(ctx, s.now().UTC(), s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due entries: %w", err)
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
			s.logger.Error("failed to enqueue due entry",
				zap.String("entryId", entry.ID),
				zap.String("queue", queueName),
				zap.Error(err),
			)
			continue
		}

		if err := s.entries.MarkDispatched(ctx, entry.ID, s.now().UTC()); err != nil {
			s.logger.Error("failed to mark entry as dispatched",
				zap.String("entryId", entry.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
