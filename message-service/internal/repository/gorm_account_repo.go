package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
)

// GormAccountRepository implements AccountRepository using GORM.
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GORM-based account repository.
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create inserts the account. A conflicting username inserts nothing,
// which is reported as ErrAccountExists on every driver.
func (r *GormAccountRepository) Create(ctx context.Context, username, passwordHash string) error {
	model := &domain.AccountModel{Username: username, PasswordHash: passwordHash}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountExists
	}
	return nil
}

// PasswordHash looks up the stored hash.
func (r *GormAccountRepository) PasswordHash(ctx context.Context, username string) (string, error) {
	var model domain.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return model.PasswordHash, nil
}
