package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"gorm.io/gorm"
)

// UserDirectory is the read-only collaborator port for recipient resolution.
// Account, contract, and auth data live in other systems; this exposes just
// what routing needs.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListManagers(ctx context.Context) ([]domain.User, error)
}

type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (d *GormUserDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := d.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (d *GormUserDirectory) ListManagers(ctx context.Context) ([]domain.User, error) {
	var models []UserModel
	err := d.db.WithContext(ctx).
		Where("role IN ?", []domain.Role{domain.RoleManager, domain.RoleAdmin}).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *userModelToDomain(&models[i]))
	}
	return users, nil
}
