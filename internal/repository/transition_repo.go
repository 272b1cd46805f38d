package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
)

// TransitionRepository reads the append-only stage history ledger. Writes
// happen inside OrderRepository.TransitionStage so the ledger and the order
// row commit together.
type TransitionRepository interface {
	ListByOrder(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error)
	// CountForOrdersSince counts ledger records across orders for digest runs.
	CountForOrdersSince(ctx context.Context, orderIDs []string, since time.Time) (int64, error)
}

type GormTransitionRepo struct {
	db *gorm.DB
}

func NewGormTransitionRepo(db *gorm.DB) *GormTransitionRepo {
	return &GormTransitionRepo{db: db}
}

func (r *GormTransitionRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.StageTransitionRecord, error) {
	var models []StageTransitionModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.StageTransitionRecord, 0, len(models))
	for i := range models {
		records = append(records, *transitionModelToDomain(&models[i]))
	}
	return records, nil
}

func (r *GormTransitionRepo) CountForOrdersSince(ctx context.Context, orderIDs []string, since time.Time) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&StageTransitionModel{}).
		Where("order_id IN ? AND created_at >= ?", orderIDs, since).
		Count(&count).Error
	return count, err
}
