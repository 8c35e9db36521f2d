package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/message-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/events"
)

// EventPublisher announces committed writes. Implementations handle and
// report their own failures; callers treat an error as informational.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// TokenIssuer signs bearer tokens for a username.
type TokenIssuer interface {
	Issue(username string) (string, time.Time, error)
}

// AccountService registers accounts and exchanges credentials for tokens.
type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) error
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
}

// MessageService defines the interface for message business logic.
type MessageService interface {
	Post(ctx context.Context, username string, req *domain.PostMessageRequest) (*domain.Message, error)
	Recall(ctx context.Context, username string, id int64) (*domain.Message, error)
	List(ctx context.Context, q *domain.ListMessagesQuery) ([]*domain.Message, error)
}

// ModerationService defines the interface for admin moderation.
type ModerationService interface {
	Ban(ctx context.Context, admin string, req *domain.BanRequest) (*domain.BanResponse, error)
	Unban(ctx context.Context, admin string, req *domain.UnbanRequest) error
	SensitiveWords(ctx context.Context) []string
	SetSensitiveWords(ctx context.Context, admin string, words []string) ([]string, error)
	// LoadSensitiveWords refreshes the in-memory filter from the store.
	LoadSensitiveWords(ctx context.Context) error
}
