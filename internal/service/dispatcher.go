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
	"github.com/kursadbilgin/order-pipeline/internal/observability"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

const defaultMaxDeliveryAttempts = 5

// EventDispatcher fans a business event out to its recipients. The pipeline
// treats dispatch as best-effort: a committed transition is never rolled back
// because notifications failed.
type EventDispatcher interface {
	DispatchEvent(ctx context.Context, event domain.Event) error
}

// DispatcherConfig carries the tunables resolved from the environment.
type DispatcherConfig struct {
	Defaults            domain.PreferenceDefaults
	WeekdayMorning      domain.TimeOfDay
	MaxDeliveryAttempts int
}

// Dispatcher resolves recipients for an event, gates each one through the
// per-user preference filter, and enqueues deliverable entries.
type Dispatcher struct {
	entries   repository.QueueRepository
	prefs     repository.PreferenceRepository
	directory repository.UserDirectory
	publisher queue.Publisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       DispatcherConfig
	now       func() time.Time
}

var _ EventDispatcher = (*Dispatcher)(nil)

func NewDispatcher(
	entries repository.QueueRepository,
	prefs repository.PreferenceRepository,
	directory repository.UserDirectory,
	publisher queue.Publisher,
	cfg DispatcherConfig,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if entries == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if prefs == nil {
		return nil, fmt.Errorf("preference repository is required")
	}
	if directory == nil {
		return nil, fmt.Errorf("user directory is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = defaultMaxDeliveryAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		entries:   entries,
		prefs:     prefs,
		directory: directory,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// DispatchEvent resolves the recipient set for the event and processes each
// recipient independently. Per-recipient failures are logged and counted but
// do not abort the rest of the fan-out.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event domain.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("%w: invalid event type %q", domain.ErrValidation, event.Type)
	}
	if event.Type == domain.TypeDailySummary {
		return fmt.Errorf("%w: daily summaries are produced by the digest run", domain.ErrValidation)
	}

	recipients, err := d.resolveRecipients(ctx, event)
	if err != nil {
		return err
	}

	var queued, deferred, suppressed, failed int
	for _, recipient := range recipients {
		outcome, err := d.dispatchToRecipient(ctx, event, recipient)
		if err != nil {
			failed++
			d.logger.Error("failed to dispatch event to recipient",
				zap.String("type", event.Type.String()),
				zap.String("orderId", event.OrderID),
				zap.String("recipientId", recipient.ID),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case domain.OutcomeSend:
			queued++
		case domain.OutcomeDefer:
			deferred++
		case domain.OutcomeSuppress:
			suppressed++
		}
	}

	d.logger.Info("event dispatched",
		zap.String("type", event.Type.String()),
		zap.String("orderId", event.OrderID),
		zap.Int("recipients", len(recipients)),
		zap.Int("queued", queued),
		zap.Int("deferred", deferred),
		zap.Int("suppressed", suppressed),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("dispatch completed with %d/%d recipient failures", failed, len(recipients))
	}
	return nil
}

// resolveRecipients maps the event type to its audience: the assigned user
// always, plus escalation roles for overdue and urgent alerts.
func (d *Dispatcher) resolveRecipients(ctx context.Context, event domain.Event) ([]domain.User, error) {
	recipients := make([]domain.User, 0, 4)
	seen := make(map[string]bool)

	if event.AssignedUserID != "" {
		assigned, err := d.directory.GetUser(ctx, event.AssignedUserID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to load assigned user: %w", err)
		}
		if err == nil {
			recipients = append(recipients, *assigned)
			seen[assigned.ID] = true
		} else {
			d.logger.Warn("assigned user not found, skipping",
				zap.String("userId", event.AssignedUserID),
				zap.String("orderId", event.OrderID),
			)
		}
	}

	if event.Type == domain.TypeOverdueAlert || event.Type == domain.TypeUrgentOrder {
		managers, err := d.directory.ListManagers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load escalation recipients: %w", err)
		}
		for _, manager := range managers {
			if seen[manager.ID] {
				continue
			}
			recipients = append(recipients, manager)
			seen[manager.ID] = true
		}
	}

	return recipients, nil
}

func (d *Dispatcher) dispatchToRecipient(ctx context.Context, event domain.Event, recipient domain.User) (domain.DeliveryOutcome, error) {
	pref, err := d.preferenceFor(ctx, recipient.ID, event.Type)
	if err != nil {
		return "", err
	}

	// Per-user urgency thresholds let recipients ignore mildly late orders.
	if event.Type == domain.TypeOverdueAlert &&
		pref.UrgencyThresholdHours > 0 &&
		event.StalenessHours < pref.UrgencyThresholdHours {
		d.recordOutcome(event.Type, "below_threshold")
		return domain.OutcomeSuppress, nil
	}

	nowLocal := d.now().In(recipient.Location())
	decision := domain.DecideDelivery(pref, event.Priority, nowLocal, domain.FilterOptions{
		WeekdayMorning: d.cfg.WeekdayMorning,
	})

	rendered := renderEvent(event, pref.DeliveryMethod)
	entry := &domain.QueueEntry{
		ID:             uuid.NewString(),
		RecipientID:    recipient.ID,
		Type:           event.Type,
		DeliveryMethod: pref.DeliveryMethod,
		Priority:       event.Priority,
		Subject:        rendered.Subject,
		Body:           rendered.Body,
		ScheduledAt:    d.now().UTC(),
		RelatedOrderID: &event.OrderID,
		MaxAttempts:    d.cfg.MaxDeliveryAttempts,
	}

	switch decision.Outcome {
	case domain.OutcomeSuppress:
		entry.Status = domain.EntrySuppressed
		if err := d.entries.Insert(ctx, entry); err != nil {
			return "", fmt.Errorf("failed to record suppressed entry: %w", err)
		}
		d.recordOutcome(event.Type, "suppressed")
		return domain.OutcomeSuppress, nil

	case domain.OutcomeDefer:
		entry.Status = domain.EntryPending
		entry.ScheduledAt = decision.ResumeAt.UTC()
		if err := d.entries.UpsertPending(ctx, entry); err != nil {
			return "", fmt.Errorf("failed to enqueue deferred entry: %w", err)
		}
		d.recordOutcome(event.Type, "deferred")
		return domain.OutcomeDefer, nil
	}

	entry.Status = domain.EntryPending
	if err := d.entries.UpsertPending(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to enqueue entry: %w", err)
	}
	if err := d.publishEntry(ctx, entry); err != nil {
		// The dispatch scan republishes entries whose publish failed here.
		d.logger.Warn("failed to publish entry, dispatch scan will retry",
			zap.String("entryId", entry.ID),
			zap.Error(err),
		)
		d.recordOutcome(event.Type, "queued")
		return domain.OutcomeSend, nil
	}

	d.recordOutcome(event.Type, "queued")
	return domain.OutcomeSend, nil
}

func (d *Dispatcher) publishEntry(ctx context.Context, entry *domain.QueueEntry) error {
	msg := queue.DeliveryMessage{
		EntryID:        entry.ID,
		RecipientID:    entry.RecipientID,
		DeliveryMethod: entry.DeliveryMethod,
		Priority:       entry.Priority,
	}
	if err := d.publisher.Publish(ctx, queue.QueueName(entry.DeliveryMethod), msg); err != nil {
		return err
	}
	return d.entries.MarkDispatched(ctx, entry.ID, d.now().UTC())
}

// preferenceFor loads the stored preference or materializes the system
// default when the user never saved one.
func (d *Dispatcher) preferenceFor(ctx context.Context, userID string, t domain.NotificationType) (domain.NotificationPreference, error) {
	pref, err := d.prefs.Get(ctx, userID, t)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DefaultPreference(userID, t, d.cfg.Defaults), nil
	}
	if err != nil {
		return domain.NotificationPreference{}, fmt.Errorf("failed to load preference: %w", err)
	}
	return *pref, nil
}

func (d *Dispatcher) recordOutcome(t domain.NotificationType, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.IncDispatchOutcome(t.String(), outcome)
}

func renderEvent(event domain.Event, method domain.DeliveryMethod) content.Rendered {
	switch event.Type {
	case domain.TypeAssignment:
		return content.RenderAssignment(method, content.StagePayload{
			OrderID:  event.OrderID,
			ToStage:  event.ToStage,
			ActorID:  event.ActorID,
			Priority: event.Priority,
		})
	case domain.TypeOverdueAlert:
		return content.RenderOverdueAlert(method, content.OverduePayload{
			OrderID:        event.OrderID,
			Stage:          event.ToStage,
			Priority:       event.Priority,
			HoursInStage:   event.StalenessHours,
			ThresholdHours: event.ThresholdHours,
		})
	case domain.TypeUrgentOrder:
		return content.RenderUrgentOrder(method, content.OverduePayload{
			OrderID:      event.OrderID,
			Stage:        event.ToStage,
			Priority:     event.Priority,
			HoursInStage: event.StalenessHours,
		})
	}
	return content.RenderStageChange(method, content.StagePayload{
		OrderID:   event.OrderID,
		FromStage: event.FromStage,
		ToStage:   event.ToStage,
		ActorID:   event.ActorID,
		Priority:  event.Priority,
	})
}
