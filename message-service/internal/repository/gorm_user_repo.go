package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
)

// GormUserRepository implements UserRepository using GORM. It also serves
// as the ban lookup behind the auth middleware.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Ban sets banned_until, creating the user first when needed.
func (r *GormUserRepository) Ban(ctx context.Context, username string, until time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, username); err != nil {
			return err
		}
		until = until.UTC()
		return tx.Model(&domain.UserModel{}).
			Where("username = ?", username).
			Update("banned_until", &until).Error
	})
}

// Unban clears banned_until.
func (r *GormUserRepository) Unban(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.UserModel
		if err := tx.First(&model, "username = ?", username).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.Model(&domain.UserModel{}).
			Where("username = ?", username).
			Update("banned_until", nil).Error
	})
}

// BannedUntil returns when the user's ban ends.
func (r *GormUserRepository) BannedUntil(ctx context.Context, username string) (time.Time, error) {
	var model domain.UserModel
	result := r.db.WithContext(ctx).First(&model, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, result.Error
	}
	if model.BannedUntil == nil {
		return time.Time{}, nil
	}
	return *model.BannedUntil, nil
}
