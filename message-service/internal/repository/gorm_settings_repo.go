package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
)

const settingSensitiveWords = "sensitive_words"

// GormSettingsRepository implements SettingsRepository using GORM.
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GORM-based settings repository.
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// SensitiveWords returns the stored list, empty when never set.
func (r *GormSettingsRepository) SensitiveWords(ctx context.Context) ([]string, error) {
	var model domain.SettingModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", settingSensitiveWords).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []string{}, nil
		}
		return nil, err
	}

	words := []string{}
	if err := json.Unmarshal([]byte(model.Value), &words); err != nil {
		return nil, fmt.Errorf("failed to decode sensitive words: %w", err)
	}
	return words, nil
}

// SetSensitiveWords replaces the stored list.
func (r *GormSettingsRepository) SetSensitiveWords(ctx context.Context, words []string) error {
	if words == nil {
		words = []string{}
	}
	data, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("failed to encode sensitive words: %w", err)
	}

	model := domain.SettingModel{Name: settingSensitiveWords, Value: string(data)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model).Error
}
