package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/observability"
	"github.com/kursadbilgin/order-pipeline/internal/provider"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/ratelimit"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

const (
	minWorkerConcurrency = 1
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

// DeliveryWorker consumes the per-method work queues, claims entries, and
// pushes them through the matching provider. Claiming (PENDING -> SENDING)
// makes duplicate broker messages harmless.
type DeliveryWorker struct {
	entries       repository.QueueRepository
	subscriptions repository.SubscriptionRepository
	directory     repository.UserDirectory
	consumer      queue.Consumer
	senders       map[domain.DeliveryMethod]provider.Sender
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
	randIntn      func(n int) int
}

func NewDeliveryWorker(
	entries repository.QueueRepository,
	subscriptions repository.SubscriptionRepository,
	directory repository.UserDirectory,
	consumer queue.Consumer,
	senders map[domain.DeliveryMethod]provider.Sender,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("at least one sender is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		entries:       entries,
		subscriptions: subscriptions,
		directory:     directory,
		consumer:      consumer,
		senders:       senders,
		rateLimiter:   rateLimiter,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
		randIntn:      rand.Intn,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the per-method queues until context cancellation.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("delivery worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := w.consumer.Consume(groupCtx, queueName, w.processMessage)
			if err != nil {
				w.logger.Error("delivery worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("delivery worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

func (w *DeliveryWorker) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	entry, err := w.entries.ClaimForDelivery(ctx, msg.EntryID, w.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn("queue entry not found during claim, skipping",
				zap.String("entryId", msg.EntryID),
			)
			return nil
		}
		return fmt.Errorf("failed to claim entry for delivery: %w", err)
	}

	// Nil means another worker handled it or the entry is not yet due.
	if entry == nil {
		return nil
	}

	methodName := strings.ToLower(entry.DeliveryMethod.String())
	if w.metrics != nil {
		w.metrics.IncWorkerInFlight(methodName)
		defer w.metrics.DecWorkerInFlight(methodName)
	}

	if err := w.rateLimiter.Wait(ctx, methodName); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendStart := w.now()
	sendErr := w.send(ctx, entry)
	if w.metrics != nil {
		w.metrics.ObserveNotificationSendDuration(methodName, w.now().Sub(sendStart))
	}

	if sendErr == nil {
		if err := w.entries.MarkSent(ctx, entry.ID); err != nil {
			return fmt.Errorf("failed to mark entry as sent: %w", err)
		}
		if w.metrics != nil {
			w.metrics.IncNotificationSent(methodName)
		}
		return nil
	}

	attemptNumber := entry.AttemptCount + 1
	maxAttempts := entry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxDeliveryAttempts
	}

	if provider.IsTransient(sendErr) && attemptNumber < maxAttempts {
		nextRetryAt := w.now().UTC().Add(w.computeRetryDelay(attemptNumber))
		if err := w.entries.ScheduleRetry(ctx, entry.ID, nextRetryAt, sendErr.Error()); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		if w.metrics != nil {
			w.metrics.IncRetryScheduled(methodName)
		}
		return nil
	}

	if err := w.entries.MarkFailed(ctx, entry.ID, sendErr.Error()); err != nil {
		return fmt.Errorf("failed to mark entry as failed: %w", err)
	}
	if w.metrics != nil {
		reason := "permanent_error"
		if provider.IsTransient(sendErr) {
			reason = "retry_exhausted"
		}
		w.metrics.IncNotificationFailed(methodName, reason)
	}

	return nil
}

// send resolves the delivery target for the entry's method and invokes the
// provider. Push fans out to every active device subscription.
func (w *DeliveryWorker) send(ctx context.Context, entry *domain.QueueEntry) error {
	sender, ok := w.senders[entry.DeliveryMethod]
	if !ok {
		return &provider.SendError{
			Message: fmt.Sprintf("no sender configured for method %s", entry.DeliveryMethod),
		}
	}

	if entry.DeliveryMethod == domain.MethodPush {
		return w.sendPush(ctx, sender, entry)
	}

	user, err := w.directory.GetUser(ctx, entry.RecipientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &provider.SendError{Message: "recipient no longer exists"}
		}
		return &provider.SendError{Message: "failed to load recipient", Transient: true, Cause: err}
	}

	endpoint := user.Email
	if entry.DeliveryMethod == domain.MethodSMS {
		endpoint = user.Phone
	}

	_, err = sender.Send(ctx, provider.Message{
		Endpoint: endpoint,
		Subject:  entry.Subject,
		Body:     entry.Body,
	})
	return err
}

// sendPush delivers to every active subscription; one success is enough.
// Endpoints the gateway reports gone are deactivated so they are skipped next
// time.
func (w *DeliveryWorker) sendPush(ctx context.Context, sender provider.Sender, entry *domain.QueueEntry) error {
	subs, err := w.subscriptions.ListActiveByUser(ctx, entry.RecipientID)
	if err != nil {
		return &provider.SendError{Message: "failed to load push subscriptions", Transient: true, Cause: err}
	}
	if len(subs) == 0 {
		return &provider.SendError{Message: "recipient has no active push subscriptions"}
	}

	var lastErr error
	delivered := 0
	for _, sub := range subs {
		_, sendErr := sender.Send(ctx, provider.Message{
			Endpoint: sub.Endpoint,
			AuthKey:  sub.AuthKey,
			Subject:  entry.Subject,
			Body:     entry.Body,
		})
		if sendErr == nil {
			delivered++
			continue
		}

		lastErr = sendErr
		if provider.IsEndpointGone(sendErr) {
			if deactivateErr := w.subscriptions.Deactivate(ctx, sub.ID); deactivateErr != nil {
				w.logger.Error("failed to deactivate gone push subscription",
					zap.String("subscriptionId", sub.ID),
					zap.Error(deactivateErr),
				)
			} else {
				w.logger.Info("deactivated gone push subscription",
					zap.String("subscriptionId", sub.ID),
					zap.String("userId", entry.RecipientID),
				)
			}
		}
	}

	if delivered > 0 {
		return nil
	}
	return lastErr
}

func (w *DeliveryWorker) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterMillis := 0
	if w.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = w.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}
