package service

import (
	"context"
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/events"
	"github.com/kursadbilgin/order-pipeline/internal/provider"
	"github.com/kursadbilgin/order-pipeline/internal/queue"
	"github.com/kursadbilgin/order-pipeline/internal/ratelimit"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

type fakeOrderRepo struct {
	createFn                  func(ctx context.Context, o *domain.Order) error
	getByIDFn                 func(ctx context.Context, id string) (*domain.Order, error)
	listFn                    func(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error)
	listActiveFn              func(ctx context.Context, limit int) ([]domain.Order, error)
	listOpenByUserFn          func(ctx context.Context, userID string) ([]domain.Order, error)
	listUsersWithOpenOrdersFn func(ctx context.Context) ([]string, error)
	setClientApprovalFn       func(ctx context.Context, id string) error
	setManufacturingFn        func(ctx context.Context, id string) error
	transitionStageFn         func(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error
}

func (f *fakeOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if f.createFn != nil {
		return f.createFn(ctx, o)
	}
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeOrderRepo) List(ctx context.Context, params repository.OrderListParams) ([]domain.Order, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeOrderRepo) ListActive(ctx context.Context, limit int) ([]domain.Order, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeOrderRepo) ListOpenByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if f.listOpenByUserFn != nil {
		return f.listOpenByUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeOrderRepo) ListUsersWithOpenOrders(ctx context.Context) ([]string, error) {
	if f.listUsersWithOpenOrdersFn != nil {
		return f.listUsersWithOpenOrdersFn(ctx)
	}
	return nil, nil
}

func (f *fakeOrderRepo) SetClientApproval(ctx context.Context, id string) error {
	if f.setClientApprovalFn != nil {
		return f.setClientApprovalFn(ctx, id)
	}
	return nil
}

func (f *fakeOrderRepo) SetManufacturingComplete(ctx context.Context, id string) error {
	if f.setManufacturingFn != nil {
		return f.setManufacturingFn(ctx, id)
	}
	return nil
}

func (f *fakeOrderRepo) TransitionStage(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error {
	if f.transitionStageFn != nil {
		return f.transitionStageFn(ctx, orderID, fromStage, toStage, enteredAt, record)
	}
	return nil
}

var _ repository.OrderRepository = (*fakeOrderRepo)(nil)

type fakeTransitionRepo struct {
	listByOrderFn        func(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error)
	countForOrdersSinceFn func(ctx context.Context, orderIDs []string, since time.Time) (int64, error)
}

func (f *fakeTransitionRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error) {
	if f.listByOrderFn != nil {
		return f.listByOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (f *fakeTransitionRepo) CountForOrdersSince(ctx context.Context, orderIDs []string, since time.Time) (int64, error) {
	if f.countForOrdersSinceFn != nil {
		return f.countForOrdersSinceFn(ctx, orderIDs, since)
	}
	return 0, nil
}

var _ repository.TransitionRepository = (*fakeTransitionRepo)(nil)

type fakeQueueRepo struct {
	upsertPendingFn       func(ctx context.Context, e *domain.QueueEntry) error
	insertFn              func(ctx context.Context, e *domain.QueueEntry) error
	getByIDFn             func(ctx context.Context, id string) (*domain.QueueEntry, error)
	listFn                func(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error)
	claimForDeliveryFn    func(ctx context.Context, id string, now time.Time) (*domain.QueueEntry, error)
	markSentFn            func(ctx context.Context, id string) error
	markFailedFn          func(ctx context.Context, id string, cause string) error
	scheduleRetryFn       func(ctx context.Context, id string, nextRetryAt time.Time, cause string) error
	getDueForDispatchFn   func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	getDueForRetryFn      func(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	markDispatchedFn      func(ctx context.Context, id string, at time.Time) error
	clearNextRetryAtFn    func(ctx context.Context, id string) error
	digestEnqueuedSinceFn func(ctx context.Context, userID string, since time.Time) (bool, error)
}

func (f *fakeQueueRepo) UpsertPending(ctx context.Context, e *domain.QueueEntry) error {
	if f.upsertPendingFn != nil {
		return f.upsertPendingFn(ctx, e)
	}
	return nil
}

func (f *fakeQueueRepo) Insert(ctx context.Context, e *domain.QueueEntry) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, e)
	}
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeQueueRepo) List(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeQueueRepo) ClaimForDelivery(ctx context.Context, id string, now time.Time) (*domain.QueueEntry, error) {
	if f.claimForDeliveryFn != nil {
		return f.claimForDeliveryFn(ctx, id, now)
	}
	return nil, nil
}

func (f *fakeQueueRepo) MarkSent(ctx context.Context, id string) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id)
	}
	return nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id string, cause string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, cause)
	}
	return nil
}

func (f *fakeQueueRepo) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time, cause string) error {
	if f.scheduleRetryFn != nil {
		return f.scheduleRetryFn(ctx, id, nextRetryAt, cause)
	}
	return nil
}

func (f *fakeQueueRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	if f.getDueForDispatchFn != nil {
		return f.getDueForDispatchFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeQueueRepo) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	if f.getDueForRetryFn != nil {
		return f.getDueForRetryFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeQueueRepo) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if f.markDispatchedFn != nil {
		return f.markDispatchedFn(ctx, id, at)
	}
	return nil
}

func (f *fakeQueueRepo) ClearNextRetryAt(ctx context.Context, id string) error {
	if f.clearNextRetryAtFn != nil {
		return f.clearNextRetryAtFn(ctx, id)
	}
	return nil
}

func (f *fakeQueueRepo) DigestEnqueuedSince(ctx context.Context, userID string, since time.Time) (bool, error) {
	if f.digestEnqueuedSinceFn != nil {
		return f.digestEnqueuedSinceFn(ctx, userID, since)
	}
	return false, nil
}

var _ repository.QueueRepository = (*fakeQueueRepo)(nil)

type fakePreferenceRepo struct {
	getFn                     func(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error)
	listByUserFn              func(ctx context.Context, userID string) ([]domain.NotificationPreference, error)
	upsertFn                  func(ctx context.Context, p *domain.NotificationPreference) error
	listUsersWithTypeEnabledFn func(ctx context.Context, t domain.NotificationType) ([]string, error)
}

func (f *fakePreferenceRepo) Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error) {
	if f.getFn != nil {
		return f.getFn(ctx, userID, t)
	}
	return nil, domain.ErrNotFound
}

func (f *fakePreferenceRepo) ListByUser(ctx context.Context, userID string) ([]domain.NotificationPreference, error) {
	if f.listByUserFn != nil {
		return f.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakePreferenceRepo) Upsert(ctx context.Context, p *domain.NotificationPreference) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, p)
	}
	return nil
}

func (f *fakePreferenceRepo) ListUsersWithTypeEnabled(ctx context.Context, t domain.NotificationType) ([]string, error) {
	if f.listUsersWithTypeEnabledFn != nil {
		return f.listUsersWithTypeEnabledFn(ctx, t)
	}
	return nil, nil
}

var _ repository.PreferenceRepository = (*fakePreferenceRepo)(nil)

type fakeDirectory struct {
	getUserFn      func(ctx context.Context, id string) (*domain.User, error)
	listManagersFn func(ctx context.Context) ([]domain.User, error)
}

func (f *fakeDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDirectory) ListManagers(ctx context.Context) ([]domain.User, error) {
	if f.listManagersFn != nil {
		return f.listManagersFn(ctx)
	}
	return nil, nil
}

var _ repository.UserDirectory = (*fakeDirectory)(nil)

type fakeSubscriptionRepo struct {
	listActiveByUserFn func(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	deactivateFn       func(ctx context.Context, id string) error
}

func (f *fakeSubscriptionRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	if f.listActiveByUserFn != nil {
		return f.listActiveByUserFn(ctx, userID)
	}
	return nil, nil
}

func (f *fakeSubscriptionRepo) Deactivate(ctx context.Context, id string) error {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, id)
	}
	return nil
}

var _ repository.SubscriptionRepository = (*fakeSubscriptionRepo)(nil)

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Publisher = (*fakePublisher)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Consumer = (*fakeConsumer)(nil)

type fakeSender struct {
	sendFn func(ctx context.Context, msg provider.Message) (*provider.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, msg provider.Message) (*provider.Response, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.Response{StatusCode: 200}, nil
}

var _ provider.Sender = (*fakeSender)(nil)

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, method string) (bool, error)
	waitFn  func(ctx context.Context, method string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, method string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, method)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, method string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, method)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeDispatcher struct {
	dispatchFn func(ctx context.Context, event domain.Event) error
}

func (f *fakeDispatcher) DispatchEvent(ctx context.Context, event domain.Event) error {
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, event)
	}
	return nil
}

var _ EventDispatcher = (*fakeDispatcher)(nil)

type fakeExporter struct {
	exportFn func(ctx context.Context, event domain.StageChangedEvent) error
}

func (f *fakeExporter) ExportStageChange(ctx context.Context, event domain.StageChangedEvent) error {
	if f.exportFn != nil {
		return f.exportFn(ctx, event)
	}
	return nil
}

func (f *fakeExporter) Close() error { return nil }

var _ events.Exporter = (*fakeExporter)(nil)
