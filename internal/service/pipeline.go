package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/events"
	"github.com/kursadbilgin/order-pipeline/internal/observability"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

// PipelineService owns all stage mutation. Orders change stage only through
// RequestTransition, which validates the edge, checks the gate, commits the
// compare-and-set update plus ledger append, and then fans out notifications.
type PipelineService struct {
	orders      repository.OrderRepository
	transitions repository.TransitionRepository
	dispatcher  EventDispatcher
	exporter    events.Exporter
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewPipelineService(
	orders repository.OrderRepository,
	transitions repository.TransitionRepository,
	dispatcher EventDispatcher,
	exporter events.Exporter,
	logger *zap.Logger,
) (*PipelineService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("transition repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher is required")
	}
	if exporter == nil {
		exporter = events.NopExporter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PipelineService{
		orders:      orders,
		transitions: transitions,
		dispatcher:  dispatcher,
		exporter:    exporter,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *PipelineService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CreateOrder registers a new order at the head of the pipeline and notifies
// the assigned user.
func (s *PipelineService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	order.ID = strings.TrimSpace(order.ID)
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.Stage = domain.StageQuoteRequested
	order.StageEnteredAt = now
	order.ClientApprovalRecorded = false
	order.ManufacturingComplete = false
	if order.Priority == "" {
		order.Priority = domain.PriorityMedium
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.notify(ctx, domain.Event{
		Type:            domain.TypeAssignment,
		OrderID:         order.ID,
		AssignedUserID:  order.AssignedUserID,
		ToStage:         order.Stage,
		ActorID:         order.AssignedUserID,
		Priority:        order.Priority,
		TotalValueCents: order.TotalValueCents,
		OccurredAt:      now,
	})

	return order, nil
}

// RequestTransition moves an order along one allowed edge. The stage update
// and ledger append commit atomically; notification fan-out and event export
// happen after commit and never fail the transition.
func (s *PipelineService) RequestTransition(ctx context.Context, orderID string, toStage domain.Stage, actorID, notes string) (*domain.Order, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: actor id is required", domain.ErrValidation)
	}
	if !toStage.IsValid() {
		return nil, fmt.Errorf("%w: invalid target stage %q", domain.ErrValidation, toStage)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fromStage := order.Stage
	if fromStage.IsTerminal() {
		s.rejectTransition("terminal_stage")
		return nil, fmt.Errorf("%w: order %s is in terminal stage %s", domain.ErrInvalidTransition, orderID, fromStage)
	}
	if !fromStage.CanTransitionTo(toStage) {
		s.rejectTransition("invalid_transition")
		return nil, fmt.Errorf("%w: %s -> %s is not an allowed transition", domain.ErrInvalidTransition, fromStage, toStage)
	}
	if !order.GateSatisfied(toStage) {
		s.rejectTransition("gate_not_satisfied")
		return nil, fmt.Errorf("%w: %s requires %s", domain.ErrGateNotSatisfied, toStage, domain.GateFor(toStage))
	}

	now := s.now().UTC()
	record := &domain.StageTransitionRecord{
		ID:                   uuid.NewString(),
		OrderID:              orderID,
		FromStage:            fromStage,
		ToStage:              toStage,
		ActorID:              strings.TrimSpace(actorID),
		Notes:                strings.TrimSpace(notes),
		DurationInPriorStage: now.Sub(order.StageEnteredAt),
		CreatedAt:            now,
	}

	if err := s.orders.TransitionStage(ctx, orderID, fromStage, toStage, now, record); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.rejectTransition("concurrent_modification")
		}
		return nil, err
	}

	order.Stage = toStage
	order.StageEnteredAt = now
	order.UpdatedAt = now

	if s.metrics != nil {
		s.metrics.IncStageTransition(fromStage.String(), toStage.String())
	}

	if err := s.exporter.ExportStageChange(ctx, domain.StageChangedEvent{
		OrderID:         orderID,
		FromStage:       fromStage,
		ToStage:         toStage,
		ActorID:         record.ActorID,
		Priority:        order.Priority,
		TotalValueCents: order.TotalValueCents,
		OccurredAt:      now,
	}); err != nil {
		s.logger.Error("failed to export stage change event",
			zap.String("orderId", orderID),
			zap.Error(err),
		)
	}

	s.notify(ctx, domain.Event{
		Type:            domain.TypeStageChange,
		OrderID:         orderID,
		AssignedUserID:  order.AssignedUserID,
		FromStage:       fromStage,
		ToStage:         toStage,
		ActorID:         record.ActorID,
		Priority:        order.Priority,
		TotalValueCents: order.TotalValueCents,
		OccurredAt:      now,
	})

	return order, nil
}

// History returns the immutable transition ledger for an order, oldest first.
func (s *PipelineService) History(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}

	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.transitions.ListByOrder(ctx, orderID)
}

func (s *PipelineService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	return s.orders.GetByID(ctx, orderID)
}

func (s *PipelineService) ListOrders(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, params)
}

// RecordClientApproval sets the gate flag required to enter ORDER_PROCESSING.
func (s *PipelineService) RecordClientApproval(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	return s.orders.SetClientApproval(ctx, orderID)
}

// RecordManufacturingComplete sets the gate flag required to enter
// READY_TO_SHIP.
func (s *PipelineService) RecordManufacturingComplete(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", domain.ErrValidation)
	}
	return s.orders.SetManufacturingComplete(ctx, orderID)
}

// notify runs the dispatch fan-out; dispatch failures are logged, never
// propagated, so pipeline writes stay decoupled from notification health.
func (s *PipelineService) notify(ctx context.Context, event domain.Event) {
	if err := s.dispatcher.DispatchEvent(ctx, event); err != nil {
		s.logger.Error("notification dispatch failed",
			zap.String("type", event.Type.String()),
			zap.String("orderId", event.OrderID),
			zap.Error(err),
		)
	}
}

func (s *PipelineService) rejectTransition(reason string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncTransitionRejected(reason)
}
