package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
)

type OrderListParams struct {
	Stage          *domain.Stage
	Priority       *domain.Priority
	AssignedUserID *string
	Page           int
	PageSize       int
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
	// ListActive returns non-terminal orders for the overdue sweep.
	ListActive(ctx context.Context, limit int) ([]domain.Order, error)
	// ListOpenByUser returns a user's non-terminal orders for digest runs.
	ListOpenByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListUsersWithOpenOrders(ctx context.Context) ([]string, error)
	SetClientApproval(ctx context.Context, id string) error
	SetManufacturingComplete(ctx context.Context, id string) error
	// TransitionStage applies the stage change with compare-and-set semantics
	// and appends the ledger record in the same transaction. A stage mismatch
	// at write time yields ErrConcurrentModification.
	TransitionStage(ctx context.Context, orderID string, fromStage, toStage domain.Stage, enteredAt time.Time, record *domain.StageTransitionRecord) error
}

type GormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) *GormOrderRepo {
	return &GormOrderRepo{db: db}
}

func (r *GormOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	model := orderModelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if o != nil {
		*o = *orderModelToDomain(model)
	}
	return nil
}

func (r *GormOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&OrderModel{})

	if params.Stage != nil {
		query = query.Where("stage = ?", *params.Stage)
	}
	if params.Priority != nil {
		query = query.Where("priority = ?", *params.Priority)
	}
	if params.AssignedUserID != nil {
		query = query.Where("assigned_user_id = ?", *params.AssignedUserID)
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

	var models []OrderModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}

	return orders, total, nil
}

var terminalStages = []domain.Stage{domain.StageInvoicedDelivered, domain.StageCancelled}

func (r *GormOrderRepo) ListActive(ctx context.Context, limit int) ([]domain.Order, error) {
	query := r.db.WithContext(ctx).
		Where("stage NOT IN ?", terminalStages).
		Order("stage_entered_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []OrderModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepo) ListOpenByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("assigned_user_id = ? AND stage NOT IN ?", userID, terminalStages).
		Order("stage_entered_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}
	return orders, nil
}

func (r *GormOrderRepo) ListUsersWithOpenOrders(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Distinct("assigned_user_id").
		Where("stage NOT IN ?", terminalStages).
		Pluck("assigned_user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *GormOrderRepo) SetClientApproval(ctx context.Context, id string) error {
	return r.setGateFlag(ctx, id, "client_approval_recorded")
}

func (r *GormOrderRepo) SetManufacturingComplete(ctx context.Context, id string) error {
	return r.setGateFlag(ctx, id, "manufacturing_complete")
}

func (r *GormOrderRepo) setGateFlag(ctx context.Context, id string, column string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND stage NOT IN ?", id, terminalStages).
		Update(column, true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.flagUpdateFailure(ctx, id)
	}
	return nil
}

func (r *GormOrderRepo) flagUpdateFailure(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *GormOrderRepo) TransitionStage(
	ctx context.Context,
	orderID string,
	fromStage, toStage domain.Stage,
	enteredAt time.Time,
	record *domain.StageTransitionRecord,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OrderModel{}).
			Where("id = ? AND stage = ?", orderID, fromStage).
			Updates(map[string]any{
				"stage":            toStage,
				"stage_entered_at": enteredAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Distinguish a vanished order from a lost stage race.
			var count int64
			if err := tx.Model(&OrderModel{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrNotFound
			}
			return domain.ErrConcurrentModification
		}

		return tx.Create(transitionModelFromDomain(record)).Error
	})
}
