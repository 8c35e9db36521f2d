package service

import (
	"context"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

// QueryService answers audit queries against the durable log.
type QueryService interface {
	Records(ctx context.Context, conversationID string, limit int) (*domain.RecordsResponse, error)
}
