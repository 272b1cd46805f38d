package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/observability"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

const (
	defaultOverdueScanInterval = time.Hour
	defaultOverdueScanLimit    = 1000
)

// OverdueScanner sweeps active orders, classifies how long each has sat in
// its stage, and raises overdue and urgent escalation events. The pending
// dedup invariant keeps repeated sweeps from stacking duplicate alerts.
type OverdueScanner struct {
	orders     repository.OrderRepository
	dispatcher EventDispatcher
	thresholds map[domain.Stage]time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	interval   time.Duration
	limit      int
	now        func() time.Time
}

func NewOverdueScanner(
	orders repository.OrderRepository,
	dispatcher EventDispatcher,
	thresholds map[domain.Stage]time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) (*OverdueScanner, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("event dispatcher is required")
	}
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("stage thresholds are required")
	}
	if interval <= 0 {
		interval = defaultOverdueScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OverdueScanner{
		orders:     orders,
		dispatcher: dispatcher,
		thresholds: thresholds,
		logger:     logger,
		interval:   interval,
		limit:      defaultOverdueScanLimit,
		now:        time.Now,
	}, nil
}

func (s *OverdueScanner) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *OverdueScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.Scan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("overdue scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("overdue scan failed", zap.Error(err))
			}
		}
	}
}

// Scan performs one classification sweep over all active orders.
func (s *OverdueScanner) Scan(ctx context.Context) error {
	orders, err := s.orders.ListActive(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to list active orders: %w", err)
	}

	now := s.now().UTC()
	overdueByStage := make(map[domain.Stage]int)
	var alerts, escalations int

	for i := range orders {
		order := &orders[i]
		threshold := s.thresholds[order.Stage]
		staleness := domain.ClassifyStaleness(order, now, threshold)

		if staleness == domain.StalenessOverdue {
			overdueByStage[order.Stage]++
			alerts++
			s.raise(ctx, order, domain.TypeOverdueAlert, now, threshold)
		}

		// Urgent orders escalate as soon as they drift, before they are
		// formally overdue.
		if order.Priority == domain.PriorityUrgent && staleness != domain.StalenessOK {
			escalations++
			s.raise(ctx, order, domain.TypeUrgentOrder, now, threshold)
		}
	}

	if s.metrics != nil {
		for _, stage := range domain.Stages() {
			if stage.IsTerminal() {
				continue
			}
			s.metrics.SetOverdueOrders(stage.String(), overdueByStage[stage])
		}
	}

	s.logger.Info("overdue scan completed",
		zap.Int("activeOrders", len(orders)),
		zap.Int("overdueAlerts", alerts),
		zap.Int("urgentEscalations", escalations),
	)

	return nil
}

func (s *OverdueScanner) raise(ctx context.Context, order *domain.Order, t domain.NotificationType, now time.Time, threshold time.Duration) {
	event := domain.Event{
		Type:            t,
		OrderID:         order.ID,
		AssignedUserID:  order.AssignedUserID,
		ToStage:         order.Stage,
		Priority:        order.Priority,
		TotalValueCents: order.TotalValueCents,
		StalenessHours:  int(now.Sub(order.StageEnteredAt).Hours()),
		ThresholdHours:  int(threshold.Hours()),
		OccurredAt:      now,
	}

	if err := s.dispatcher.DispatchEvent(ctx, event); err != nil {
		s.logger.Error("failed to dispatch escalation event",
			zap.String("type", t.String()),
			zap.String("orderId", order.ID),
			zap.Error(err),
		)
	}
}
