package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
)

func dueEntry(id string, method domain.DeliveryMethod) domain.QueueEntry {
	return domain.QueueEntry{
		ID:             id,
		RecipientID:    "user-1",
		Type:           domain.TypeStageChange,
		DeliveryMethod: method,
		Priority:       domain.PriorityMedium,
		Status:         domain.EntryPending,
	}
}

func TestDispatchScannerPublishesDueEntries(t *testing.T) {
	t.Parallel()

	var marked []string
	entries := &fakeQueueRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
			return []domain.QueueEntry{
				dueEntry("entry-1", domain.MethodEmail),
				dueEntry("entry-2", domain.MethodSMS),
			}, nil
		},
		markDispatchedFn: func(ctx context.Context, id string, at time.Time) error {
			marked = append(marked, id)
			return nil
		},
	}

	var publishedQueues []string
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			publishedQueues = append(publishedQueues, queueName)
			return nil
		},
	}

	s, err := NewDispatchScanner(entries, publisher, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatchScanner() error = %v", err)
	}

	if err := s.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}

	if len(publishedQueues) != 2 || publishedQueues[0] != "email" || publishedQueues[1] != "sms" {
		t.Fatalf("published queues = %v", publishedQueues)
	}
	if len(marked) != 2 {
		t.Fatalf("marked dispatched = %v, want both entries", marked)
	}
}

func TestDispatchScannerPublishFailureLeavesEntryForNextScan(t *testing.T) {
	t.Parallel()

	entries := &fakeQueueRepo{
		getDueForDispatchFn: func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
			return []domain.QueueEntry{dueEntry("entry-1", domain.MethodEmail)}, nil
		},
		markDispatchedFn: func(ctx context.Context, id string, at time.Time) error {
			t.Fatal("publish failure must not mark the entry dispatched")
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			return errors.New("broker unavailable")
		},
	}

	s, err := NewDispatchScanner(entries, publisher, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatchScanner() error = %v", err)
	}

	if err := s.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v, per-entry failures are logged", err)
	}
}

func TestRetryScannerRepublishesDueRetries(t *testing.T) {
	t.Parallel()

	cleared := false
	entries := &fakeQueueRepo{
		getDueForRetryFn: func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
			return []domain.QueueEntry{dueEntry("entry-1", domain.MethodPush)}, nil
		},
		clearNextRetryAtFn: func(ctx context.Context, id string) error {
			if id != "entry-1" {
				t.Fatalf("cleared id = %s, want entry-1", id)
			}
			cleared = true
			return nil
		},
	}

	published := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
			if queueName != "push" {
				t.Fatalf("queue = %s, want push", queueName)
			}
			published = true
			return nil
		},
	}

	s, err := NewRetryScanner(entries, publisher, time.Minute, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScanner() error = %v", err)
	}

	if err := s.scanDue(context.Background()); err != nil {
		t.Fatalf("scanDue() error = %v", err)
	}
	if !published {
		t.Fatal("expected the retry to be republished")
	}
	if !cleared {
		t.Fatal("expected the retry deadline to be cleared")
	}
}

func TestRetryScannerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	entries := &fakeQueueRepo{}
	s, err := NewRetryScanner(entries, &fakePublisher{}, 10*time.Millisecond, 10, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryScanner() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v, want nil on cancellation", err)
	}
}
