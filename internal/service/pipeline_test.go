package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

func testOrder(stage domain.Stage) *domain.Order {
	return &domain.Order{
		ID:              "order-1",
		Stage:           stage,
		Priority:        domain.PriorityMedium,
		TotalValueCents: 150000,
		AssignedUserID:  "user-1",
		AccountID:       "account-1",
		StageEnteredAt:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func newTestPipeline(t *testing.T, orders *fakeOrderRepo, transitions *fakeTransitionRepo, dispatcher *fakeDispatcher, exporter *fakeExporter) *PipelineService {
	t.Helper()

	if transitions == nil {
		transitions = &fakeTransitionRepo{}
	}
	if dispatcher == nil {
		dispatcher = &fakeDispatcher{}
	}

	var exp *fakeExporter
	if exporter != nil {
		exp = exporter
	}

	var svc *PipelineService
	var err error
	if exp != nil {
		svc, err = NewPipelineService(orders, transitions, dispatcher, exp, zap.NewNop())
	} else {
		svc, err = NewPipelineService(orders, transitions, dispatcher, nil, zap.NewNop())
	}
	if err != nil {
		t.Fatalf("NewPipelineService() error = %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) }
	return svc
}

func TestRequestTransitionHappyPath(t *testing.T) {
	t.Parallel()

	committed := false
	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return testOrder(domain.StageQuoteSent), nil
		},
		transitionStageFn: func(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error {
			if fromStage != domain.StageQuoteSent || toStage != domain.StageQuoteApproved {
				t.Fatalf("transition %s -> %s, want QUOTE_SENT -> QUOTE_APPROVED", fromStage, toStage)
			}
			if record.DurationInPriorStage != 5*time.Hour {
				t.Fatalf("duration in prior stage = %v, want 5h", record.DurationInPriorStage)
			}
			if record.ActorID != "actor-1" {
				t.Fatalf("actor = %q, want actor-1", record.ActorID)
			}
			committed = true
			return nil
		},
	}

	var dispatched []domain.Event
	dispatcher := &fakeDispatcher{
		dispatchFn: func(ctx context.Context, event domain.Event) error {
			dispatched = append(dispatched, event)
			return nil
		},
	}

	var exported []domain.StageChangedEvent
	exporter := &fakeExporter{
		exportFn: func(ctx context.Context, event domain.StageChangedEvent) error {
			exported = append(exported, event)
			return nil
		},
	}

	svc := newTestPipeline(t, orders, nil, dispatcher, exporter)

	updated, err := svc.RequestTransition(context.Background(), "order-1", domain.StageQuoteApproved, "actor-1", "client signed")
	if err != nil {
		t.Fatalf("RequestTransition() error = %v", err)
	}

	if !committed {
		t.Fatal("expected transition to be committed")
	}
	if updated.Stage != domain.StageQuoteApproved {
		t.Fatalf("updated stage = %s, want QUOTE_APPROVED", updated.Stage)
	}
	if len(dispatched) != 1 || dispatched[0].Type != domain.TypeStageChange {
		t.Fatalf("dispatched events = %+v, want one STAGE_CHANGE", dispatched)
	}
	if len(exported) != 1 || exported[0].ToStage != domain.StageQuoteApproved {
		t.Fatalf("exported events = %+v, want one to QUOTE_APPROVED", exported)
	}
}

func TestRequestTransitionRejectsInvalidEdge(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return testOrder(domain.StageQuoteRequested), nil
		},
	}
	svc := newTestPipeline(t, orders, nil, nil, nil)

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.StageReadyToShip, "actor-1", "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestTransitionRejectsTerminalStage(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return testOrder(domain.StageCancelled), nil
		},
	}
	svc := newTestPipeline(t, orders, nil, nil, nil)

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.StageQuotePrepared, "actor-1", "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestTransitionEnforcesGates(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		from     domain.Stage
		to       domain.Stage
		prepare  func(o *domain.Order)
		wantPass bool
	}{
		{
			name: "order processing requires client approval",
			from: domain.StageQuoteApproved,
			to:   domain.StageOrderProcessing,
		},
		{
			name:    "order processing passes with client approval",
			from:    domain.StageQuoteApproved,
			to:      domain.StageOrderProcessing,
			prepare: func(o *domain.Order) { o.ClientApprovalRecorded = true },
			wantPass: true,
		},
		{
			name: "ready to ship requires manufacturing complete",
			from: domain.StageOrderProcessing,
			to:   domain.StageReadyToShip,
		},
		{
			name:    "ready to ship passes with manufacturing complete",
			from:    domain.StageOrderProcessing,
			to:      domain.StageReadyToShip,
			prepare: func(o *domain.Order) { o.ManufacturingComplete = true },
			wantPass: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			order := testOrder(tc.from)
			if tc.prepare != nil {
				tc.prepare(order)
			}

			orders := &fakeOrderRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
					return order, nil
				},
			}
			svc := newTestPipeline(t, orders, nil, nil, nil)

			_, err := svc.RequestTransition(context.Background(), "order-1", tc.to, "actor-1", "")
			if tc.wantPass {
				if err != nil {
					t.Fatalf("RequestTransition() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrGateNotSatisfied) {
				t.Fatalf("error = %v, want ErrGateNotSatisfied", err)
			}
		})
	}
}

func TestRequestTransitionConcurrentModification(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return testOrder(domain.StageQuoteSent), nil
		},
		transitionStageFn: func(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error {
			return domain.ErrConcurrentModification
		},
	}

	dispatchCalled := false
	dispatcher := &fakeDispatcher{
		dispatchFn: func(ctx context.Context, event domain.Event) error {
			dispatchCalled = true
			return nil
		},
	}
	svc := newTestPipeline(t, orders, nil, dispatcher, nil)

	_, err := svc.RequestTransition(context.Background(), "order-1", domain.StageQuoteApproved, "actor-1", "")
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("error = %v, want ErrConcurrentModification", err)
	}
	if dispatchCalled {
		t.Fatal("no notification should be dispatched for a lost race")
	}
}

func TestRequestTransitionDispatchFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return testOrder(domain.StageQuoteSent), nil
		},
	}
	dispatcher := &fakeDispatcher{
		dispatchFn: func(ctx context.Context, event domain.Event) error {
			return errors.New("broker down")
		},
	}
	svc := newTestPipeline(t, orders, nil, dispatcher, nil)

	updated, err := svc.RequestTransition(context.Background(), "order-1", domain.StageQuoteApproved, "actor-1", "")
	if err != nil {
		t.Fatalf("RequestTransition() error = %v, want nil despite dispatch failure", err)
	}
	if updated.Stage != domain.StageQuoteApproved {
		t.Fatalf("updated stage = %s, want QUOTE_APPROVED", updated.Stage)
	}
}

func TestRequestTransitionCancelFromAnyActiveStage(t *testing.T) {
	t.Parallel()

	for _, from := range []domain.Stage{
		domain.StageQuoteRequested,
		domain.StageQuoteApproved,
		domain.StageReadyToShip,
	} {
		from := from
		t.Run(from.String(), func(t *testing.T) {
			t.Parallel()

			orders := &fakeOrderRepo{
				getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
					return testOrder(from), nil
				},
			}
			svc := newTestPipeline(t, orders, nil, nil, nil)

			if _, err := svc.RequestTransition(context.Background(), "order-1", domain.StageCancelled, "actor-1", "lost deal"); err != nil {
				t.Fatalf("cancel from %s error = %v", from, err)
			}
		})
	}
}

func TestCreateOrderSetsInitialStageAndNotifies(t *testing.T) {
	t.Parallel()

	created := false
	orders := &fakeOrderRepo{
		createFn: func(ctx context.Context, o *domain.Order) error {
			if o.Stage != domain.StageQuoteRequested {
				t.Fatalf("stage = %s, want QUOTE_REQUESTED", o.Stage)
			}
			if o.ID == "" {
				t.Fatal("id should be generated")
			}
			created = true
			return nil
		},
	}

	var dispatched []domain.Event
	dispatcher := &fakeDispatcher{
		dispatchFn: func(ctx context.Context, event domain.Event) error {
			dispatched = append(dispatched, event)
			return nil
		},
	}
	svc := newTestPipeline(t, orders, nil, dispatcher, nil)

	order, err := svc.CreateOrder(context.Background(), &domain.Order{
		AssignedUserID:  "user-1",
		AccountID:       "account-1",
		TotalValueCents: 50000,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !created {
		t.Fatal("expected repository create")
	}
	if order.Priority != domain.PriorityMedium {
		t.Fatalf("priority = %s, want default MEDIUM", order.Priority)
	}
	if len(dispatched) != 1 || dispatched[0].Type != domain.TypeAssignment {
		t.Fatalf("dispatched = %+v, want one ASSIGNMENT", dispatched)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	svc := newTestPipeline(t, &fakeOrderRepo{}, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), &domain.Order{AccountID: "account-1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestRequestTransitionLedgerAcrossFullPipeline(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	stored := &domain.Order{
		ID:              "order-1",
		Stage:           domain.StageQuoteRequested,
		Priority:        domain.PriorityMedium,
		TotalValueCents: 150000,
		AssignedUserID:  "user-1",
		AccountID:       "account-1",
		StageEnteredAt:  start,
	}

	var records []domain.StageTransitionRecord
	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			order := *stored
			return &order, nil
		},
		transitionStageFn: func(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error {
			if fromStage != stored.Stage {
				t.Fatalf("transition from %s, stored order is in %s", fromStage, stored.Stage)
			}
			stored.Stage = toStage
			stored.StageEnteredAt = enteredAt
			records = append(records, *record)
			return nil
		},
	}

	svc := newTestPipeline(t, orders, nil, nil, nil)
	current := start
	svc.now = func() time.Time { return current }

	steps := []struct {
		to   domain.Stage
		hold time.Duration
		gate func()
	}{
		{to: domain.StageQuotePrepared, hold: 2 * time.Hour},
		{to: domain.StageQuoteSent, hold: 30 * time.Minute},
		{to: domain.StageQuoteApproved, hold: 26 * time.Hour},
		{to: domain.StageOrderProcessing, hold: 3 * time.Hour, gate: func() { stored.ClientApprovalRecorded = true }},
		{to: domain.StageReadyToShip, hold: 72 * time.Hour, gate: func() { stored.ManufacturingComplete = true }},
		{to: domain.StageInvoicedDelivered, hold: 6 * time.Hour},
	}

	for _, step := range steps {
		current = current.Add(step.hold)
		if step.gate != nil {
			step.gate()
		}
		if _, err := svc.RequestTransition(context.Background(), "order-1", step.to, "actor-1", ""); err != nil {
			t.Fatalf("transition to %s error = %v", step.to, err)
		}
	}

	if len(records) != len(steps) {
		t.Fatalf("ledger has %d records, want %d", len(records), len(steps))
	}

	var total time.Duration
	for i, record := range records {
		total += record.DurationInPriorStage
		if record.DurationInPriorStage != steps[i].hold {
			t.Fatalf("record %d duration = %v, want %v", i, record.DurationInPriorStage, steps[i].hold)
		}
		if i > 0 && record.CreatedAt.Before(records[i-1].CreatedAt) {
			t.Fatalf("record %d at %v precedes record %d at %v", i, record.CreatedAt, i-1, records[i-1].CreatedAt)
		}
	}
	if total != current.Sub(start) {
		t.Fatalf("ledger durations sum to %v, want %v since creation", total, current.Sub(start))
	}
	if stored.Stage != domain.StageInvoicedDelivered {
		t.Fatalf("final stage = %s, want INVOICED_DELIVERED", stored.Stage)
	}
}

func TestHistoryRequiresExistingOrder(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Order, error) {
			return nil, domain.ErrNotFound
		},
	}
	svc := newTestPipeline(t, orders, nil, nil, nil)

	_, err := svc.History(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
