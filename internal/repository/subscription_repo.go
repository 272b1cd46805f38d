package repository

import (
	"context"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	ListActiveByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	// Deactivate flags a subscription whose endpoint the gateway reported
	// gone, so future dispatches skip it.
	Deactivate(ctx context.Context, id string) error
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

func (r *GormSubscriptionRepo) ListActiveByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	var models []SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	subs := make([]domain.PushSubscription, 0, len(models))
	for i := range models {
		subs = append(subs, *subscriptionModelToDomain(&models[i]))
	}
	return subs, nil
}

func (r *GormSubscriptionRepo) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
