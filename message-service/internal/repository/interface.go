package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("only the sender may recall a message")
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// MessageRepository persists messages and the conversations they belong to.
type MessageRepository interface {
	// Create stores msg in msg.ConversationID, creating the sender, the
	// conversation and the membership when missing. ID and CreatedAt are
	// filled in on success.
	Create(ctx context.Context, msg *domain.Message) error
	// Recall tombstones message id on behalf of username and returns the
	// recalled message.
	Recall(ctx context.Context, id int64, username string) (*domain.Message, error)
	// List returns messages of a conversation in ascending id order.
	List(ctx context.Context, conversationSlug string, limit, offset int) ([]*domain.Message, error)
}

// UserRepository persists moderation state.
type UserRepository interface {
	// Ban sets banned_until for username, creating the user when missing.
	Ban(ctx context.Context, username string, until time.Time) error
	// Unban clears banned_until. Returns ErrUserNotFound for unknown users.
	Unban(ctx context.Context, username string) error
	// BannedUntil returns the zero time when username is not banned.
	BannedUntil(ctx context.Context, username string) (time.Time, error)
}

// SettingsRepository persists runtime-editable settings.
type SettingsRepository interface {
	SensitiveWords(ctx context.Context) ([]string, error)
	SetSensitiveWords(ctx context.Context, words []string) error
}

// AccountRepository persists login credentials.
type AccountRepository interface {
	// Create stores a new account. Returns ErrAccountExists when taken.
	Create(ctx context.Context, username, passwordHash string) error
	// PasswordHash returns ErrAccountNotFound for unknown usernames.
	PasswordHash(ctx context.Context, username string) (string, error)
}
