package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/content"
	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

const digestLookback = 24 * time.Hour

// DigestService produces one daily-summary notification per user with open
// orders. Summaries bypass quiet-hours deferral because the run itself is
// scheduled at a sociable hour; only the enabled flag is honored.
type DigestService struct {
	orders      repository.OrderRepository
	transitions repository.TransitionRepository
	prefs       repository.PreferenceRepository
	entries     repository.QueueRepository
	publisher   queue.Publisher
	thresholds  map[domain.Stage]time.Duration
	defaults    domain.PreferenceDefaults
	logger      *zap.Logger
	digestHour  int
	maxAttempts int
	now         func() time.Time
}

func NewDigestService(
	orders repository.OrderRepository,
	transitions repository.TransitionRepository,
	prefs repository.PreferenceRepository,
	entries repository.QueueRepository,
	publisher queue.Publisher,
	thresholds map[domain.Stage]time.Duration,
	defaults domain.PreferenceDefaults,
	digestHour int,
	logger *zap.Logger,
) (*DigestService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("transition repository is required")
	}
	if prefs == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if digestHour < 0 || digestHour > 23 {
		return nil, fmt.Errorf("digest hour must be in [0,23], got %d", digestHour)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DigestService{
		orders:      orders,
		transitions: transitions,
		prefs:       prefs,
		entries:     entries,
		publisher:   publisher,
		thresholds:  thresholds,
		defaults:    defaults,
		logger:      logger,
		digestHour:  digestHour,
		maxAttempts: defaultMaxDeliveryAttempts,
		now:         time.Now,
	}, nil
}

// Start sleeps until the next digest hour, runs a sweep, and repeats.
func (s *DigestService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		wait := s.untilNextRun(s.now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("digest run failed", zap.Error(err))
		}
	}
}

// RunOnce produces digests for every eligible user. A user is skipped when
// their digest preference is disabled, they have no open orders, or a digest
// was already enqueued today.
func (s *DigestService) RunOnce(ctx context.Context) error {
	userIDs, err := s.candidates(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var produced, skipped, failed int
	for _, userID := range userIDs {
		ok, err := s.digestFor(ctx, userID, now, startOfDay)
		if err != nil {
			failed++
			s.logger.Error("failed to produce digest",
				zap.String("userId", userID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			produced++
		} else {
			skipped++
		}
	}

	s.logger.Info("digest run completed",
		zap.Int("candidates", len(userIDs)),
		zap.Int("produced", produced),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("digest run completed with %d failures", failed)
	}
	return nil
}

// candidates is the sweep set: users with open orders plus users who
// explicitly enabled the digest, each visited once. Opted-in users without
// open orders fall out in digestFor.
func (s *DigestService) candidates(ctx context.Context) ([]string, error) {
	withOrders, err := s.orders.ListUsersWithOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with open orders: %w", err)
	}
	optedIn, err := s.prefs.ListUsersWithTypeEnabled(ctx, domain.TypeDailySummary)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest opt-ins: %w", err)
	}

	seen := make(map[string]bool, len(withOrders)+len(optedIn))
	userIDs := make([]string, 0, len(withOrders)+len(optedIn))
	for _, id := range append(withOrders, optedIn...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		userIDs = append(userIDs, id)
	}
	return userIDs, nil
}

func (s *DigestService) digestFor(ctx context.Context, userID string, now, startOfDay time.Time) (bool, error) {
	pref, err := s.prefs.Get(ctx, userID, domain.TypeDailySummary)
	if errors.Is(err, domain.ErrNotFound) {
		fallback := domain.DefaultPreference(userID, domain.TypeDailySummary, s.defaults)
		pref = &fallback
	} else if err != nil {
		return false, fmt.Errorf("failed to load digest preference: %w", err)
	}
	if !pref.Enabled {
		return false, nil
	}

	alreadySent, err := s.entries.DigestEnqueuedSince(ctx, userID, startOfDay)
	if err != nil {
		return false, fmt.Errorf("failed to check digest idempotence: %w", err)
	}
	if alreadySent {
		return false, nil
	}

	open, err := s.orders.ListOpenByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list open orders: %w", err)
	}
	if len(open) == 0 {
		return false, nil
	}

	payload := s.aggregate(ctx, open, now)
	rendered := content.RenderDailySummary(pref.DeliveryMethod, payload)

	entry := &domain.QueueEntry{
		ID:             uuid.NewString(),
		RecipientID:    userID,
		Type:           domain.TypeDailySummary,
		DeliveryMethod: pref.DeliveryMethod,
		Priority:       domain.PriorityLow,
		Subject:        rendered.Subject,
		Body:           rendered.Body,
		Status:         domain.EntryPending,
		ScheduledAt:    now,
		MaxAttempts:    s.maxAttempts,
	}
	if err := s.entries.Insert(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to enqueue digest: %w", err)
	}

	msg := queue.DeliveryMessage{
		EntryID:        entry.ID,
		RecipientID:    entry.RecipientID,
		DeliveryMethod: entry.DeliveryMethod,
		Priority:       entry.Priority,
	}
	if err := s.publisher.Publish(ctx, queue.QueueName(entry.DeliveryMethod), msg); err != nil {
		// The dispatch scan picks the entry up later.
		s.logger.Warn("failed to publish digest entry, dispatch scan will retry",
			zap.String("entryId", entry.ID),
			zap.Error(err),
		)
		return true, nil
	}
	if err := s.entries.MarkDispatched(ctx, entry.ID, s.now().UTC()); err != nil {
		return false, fmt.Errorf("failed to mark digest as dispatched: %w", err)
	}

	return true, nil
}

func (s *DigestService) aggregate(ctx context.Context, open []domain.Order, now time.Time) content.DigestPayload {
	since := now.Add(-digestLookback)

	payload := content.DigestPayload{OpenOrders: len(open)}
	orderIDs := make([]string, 0, len(open))
	for i := range open {
		order := &open[i]
		orderIDs = append(orderIDs, order.ID)
		payload.OpenValueCents += order.TotalValueCents

		if order.Stage == domain.StageQuoteRequested && !order.StageEnteredAt.Before(since) {
			payload.NewRequests++
		}
		if order.Priority == domain.PriorityUrgent {
			payload.UrgentOrders++
		}
		if domain.ClassifyStaleness(order, now, s.thresholds[order.Stage]) == domain.StalenessOverdue {
			payload.OverdueOrders++
		}
	}

	changes, err := s.transitions.CountForOrdersSince(ctx, orderIDs, since)
	if err != nil {
		// The digest is still useful without the change count.
		s.logger.Warn("failed to count stage changes for digest", zap.Error(err))
	} else {
		payload.StageChanges = int(changes)
	}

	return payload
}

func (s *DigestService) untilNextRun(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.digestHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
