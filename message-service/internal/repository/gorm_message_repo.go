package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/events"
)

const defaultConversationTitle = "Public chat"

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts the message and its prerequisites in one transaction.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureUser(tx, msg.Sender); err != nil {
			return err
		}

		conv, err := getOrCreateConversation(tx, msg.ConversationID)
		if err != nil {
			return err
		}

		member := domain.ConversationMemberModel{ConversationID: conv.ID, Username: msg.Sender}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return err
		}

		model := domain.MessageModel{
			ConversationID: conv.ID,
			Sender:         msg.Sender,
			Content:        msg.Content,
			Type:           msg.Type,
			Status:         events.StatusActive,
			Metadata:       msg.Metadata,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		msg.ID = model.ID
		msg.Status = model.Status
		msg.CreatedAt = model.CreatedAt
		return nil
	})
}

// Recall tombstones a message. Recalling an already recalled message is
// allowed and leaves it unchanged.
func (r *GormMessageRepository) Recall(ctx context.Context, id int64, username string) (*domain.Message, error) {
	var recalled *domain.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model domain.MessageModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		if model.Sender != username {
			return ErrNotSender
		}

		if err := tx.Model(&domain.MessageModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       events.StatusRecalled,
			"message_type": events.TypeRecall,
			"content":      "",
			"metadata":     nil,
		}).Error; err != nil {
			return err
		}

		var conv domain.ConversationModel
		slug := events.DefaultConversation
		if err := tx.First(&conv, "id = ?", model.ConversationID).Error; err == nil {
			slug = conv.Slug
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		model.Status = events.StatusRecalled
		model.Type = events.TypeRecall
		model.Content = ""
		model.Metadata = nil
		recalled = model.ToDomain(slug)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recalled, nil
}

// List returns a page of a conversation's history. Unknown conversations
// have no history.
func (r *GormMessageRepository) List(ctx context.Context, conversationSlug string, limit, offset int) ([]*domain.Message, error) {
	db := r.db.WithContext(ctx)

	var conv domain.ConversationModel
	if err := db.First(&conv, "slug = ?", conversationSlug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []*domain.Message{}, nil
		}
		return nil, err
	}

	var models []domain.MessageModel
	if err := db.Where("conversation_id = ?", conv.ID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].ToDomain(conv.Slug))
	}
	return messages, nil
}

func ensureUser(tx *gorm.DB, username string) error {
	user := domain.UserModel{Username: username}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error
}

func getOrCreateConversation(tx *gorm.DB, slug string) (*domain.ConversationModel, error) {
	title := slug
	if slug == events.DefaultConversation {
		title = defaultConversationTitle
	}

	conv := domain.ConversationModel{Slug: slug, Title: title}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		return nil, err
	}

	var stored domain.ConversationModel
	if err := tx.First(&stored, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
