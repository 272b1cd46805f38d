package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository is the preference store: plain CRUD keyed by
// (user, notification type). Absence of a row is reported as ErrNotFound and
// means system defaults apply.
type PreferenceRepository interface {
	Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error)
	ListByUser(ctx context.Context, userID string) ([]domain.NotificationPreference, error)
	Upsert(ctx context.Context, p *domain.NotificationPreference) error
	// ListUsersWithTypeEnabled returns users who explicitly enabled a type,
	// used by the digest sweep.
	ListUsersWithTypeEnabled(ctx context.Context, t domain.NotificationType) ([]string, error)
}

type GormPreferenceRepo struct {
	db *gorm.DB
}

func NewGormPreferenceRepo(db *gorm.DB) *GormPreferenceRepo {
	return &GormPreferenceRepo{db: db}
}

func (r *GormPreferenceRepo) Get(ctx context.Context, userID string, t domain.NotificationType) (*domain.NotificationPreference, error) {
	var model PreferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, t).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return preferenceModelToDomain(&model), nil
}

func (r *GormPreferenceRepo) ListByUser(ctx context.Context, userID string) ([]domain.NotificationPreference, error) {
	var models []PreferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("type ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	prefs := make([]domain.NotificationPreference, 0, len(models))
	for i := range models {
		prefs = append(prefs, *preferenceModelToDomain(&models[i]))
	}
	return prefs, nil
}

func (r *GormPreferenceRepo) Upsert(ctx context.Context, p *domain.NotificationPreference) error {
	model := preferenceModelFromDomain(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"enabled", "delivery_method", "quiet_hours_enabled",
				"quiet_start_minutes", "quiet_end_minutes",
				"weekend_allowed", "urgency_threshold_hours", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}
	if p != nil {
		*p = *preferenceModelToDomain(model)
	}
	return nil
}

func (r *GormPreferenceRepo) ListUsersWithTypeEnabled(ctx context.Context, t domain.NotificationType) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&PreferenceModel{}).
		Where("type = ? AND enabled = ?", t, true).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
