package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QueueListParams struct {
	Status      *domain.EntryStatus
	RecipientID *string
	Type        *domain.NotificationType
	Page        int
	PageSize    int
}

type QueueRepository interface {
	// UpsertPending enforces the dedup invariant: at most one PENDING entry
	// per (recipient, type, relatedOrder). A repeated dispatch before the
	// prior entry resolves replaces its content and schedule in place.
	UpsertPending(ctx context.Context, e *domain.QueueEntry) error
	Insert(ctx context.Context, e *domain.QueueEntry) error
	GetByID(ctx context.Context, id string) (*domain.QueueEntry, error)
	List(ctx context.Context, params QueueListParams) ([]domain.QueueEntry, int64, error)
	// ClaimForDelivery flips a due PENDING entry to SENDING under a row lock.
	// Nil result means the entry is gone, not yet due, or already handled.
	ClaimForDelivery(ctx context.Context, id string, now time.Time) (*domain.QueueEntry, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string) error
	// ScheduleRetry returns the entry to PENDING with a retry deadline and
	// bumps the attempt counter.
	ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time, cause string) error
	GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	ClearNextRetryAt(ctx context.Context, id string) error
	// DigestEnqueuedSince reports whether a digest entry already exists for
	// the user in the window, keeping digest runs idempotent.
	DigestEnqueuedSince(ctx context.Context, userID string, since time.Time) (bool, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

func (r *GormQueueRepo) UpsertPending(ctx context.Context, e *domain.QueueEntry) error {
	model := queueEntryModelFromDomain(e)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "recipient_id"}, {Name: "type"}, {Name: "related_order_id"},
			},
			TargetWhere: clause.Where{
				Exprs: []clause.Expression{clause.Eq{Column: "status", Value: domain.EntryPending}},
			},
			DoUpdates: clause.Assignments(pendingUpsertAssignments(model)),
		}).
		Create(model).Error
	if err != nil {
		return err
	}
	if e != nil {
		*e = *queueEntryModelToDomain(model)
	}
	return nil
}

// pendingUpsertAssignments is the column set a repeated dispatch writes over
// an existing PENDING entry. It must clear dispatched_at and next_retry_at:
// the replaced entry carries a new schedule, and a stale dispatched_at would
// hide it from the dispatch scan if the earlier broker message is claimed
// before the new scheduled_at and skipped as not yet due.
func pendingUpsertAssignments(model *QueueEntryModel) map[string]any {
	return map[string]any{
		"delivery_method": model.DeliveryMethod,
		"priority":        model.Priority,
		"subject":         model.Subject,
		"body":            model.Body,
		"scheduled_at":    model.ScheduledAt,
		"dispatched_at":   nil,
		"next_retry_at":   nil,
		"updated_at":      time.Now().UTC(),
	}
}

func (r *GormQueueRepo) Insert(ctx context.Context, e *domain.QueueEntry) error {
	model := queueEntryModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if e != nil {
		*e = *queueEntryModelToDomain(model)
	}
	return nil
}

func (r *GormQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueEntry, error) {
	var model QueueEntryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return queueEntryModelToDomain(&model), nil
}

func (r *GormQueueRepo) List(ctx context.Context, params QueueListParams) ([]domain.QueueEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&QueueEntryModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.RecipientID != nil {
		query = query.Where("recipient_id = ?", *params.RecipientID)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []QueueEntryModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]domain.QueueEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *queueEntryModelToDomain(&models[i]))
	}

	return entries, total, nil
}

func (r *GormQueueRepo) ClaimForDelivery(ctx context.Context, id string, now time.Time) (*domain.QueueEntry, error) {
	var claimed *domain.QueueEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model QueueEntryModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		// Skip entries that are not deliverable right now: already handled,
		// or deferred to a future instant the scheduler will pick up.
		if model.Status != domain.EntryPending || model.ScheduledAt.After(now) {
			return nil
		}

		if err := tx.Model(&model).Update("status", domain.EntrySending).Error; err != nil {
			return err
		}
		model.Status = domain.EntrySending
		claimed = queueEntryModelToDomain(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *GormQueueRepo) MarkSent(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, map[string]any{
		"status":        domain.EntrySent,
		"next_retry_at": nil,
	})
}

func (r *GormQueueRepo) MarkFailed(ctx context.Context, id string, cause string) error {
	return r.updateStatus(ctx, id, map[string]any{
		"status":        domain.EntryFailed,
		"next_retry_at": nil,
		"last_error":    cause,
	})
}

func (r *GormQueueRepo) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time, cause string) error {
	return r.updateStatus(ctx, id, map[string]any{
		"status":        domain.EntryPending,
		"next_retry_at": nextRetryAt,
		"last_error":    cause,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

func (r *GormQueueRepo) updateStatus(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&QueueEntryModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormQueueRepo) GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	var models []QueueEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND dispatched_at IS NULL AND scheduled_at <= ?", domain.EntryPending, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.QueueEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *queueEntryModelToDomain(&models[i]))
	}
	return entries, nil
}

func (r *GormQueueRepo) GetDueForRetry(ctx context.Context, now time.Time, limit int) ([]domain.QueueEntry, error) {
	var models []QueueEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", domain.EntryPending, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.QueueEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *queueEntryModelToDomain(&models[i]))
	}
	return entries, nil
}

func (r *GormQueueRepo) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	return r.updateStatus(ctx, id, map[string]any{"dispatched_at": at})
}

func (r *GormQueueRepo) ClearNextRetryAt(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, map[string]any{"next_retry_at": nil})
}

func (r *GormQueueRepo) DigestEnqueuedSince(ctx context.Context, userID string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&QueueEntryModel{}).
		Where("recipient_id = ? AND type = ? AND created_at >= ?", userID, domain.TypeDailySummary, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
