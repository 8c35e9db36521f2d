package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type RecordsCache interface {
	Get(ctx context.Context, key string) ([]domain.LogRecord, error)
	Set(ctx context.Context, key string, records []domain.LogRecord, ttl time.Duration) error
	BuildKey(conversationID string, limit int) string
	Close() error
}

// Nop never stores anything. It is used when no cache address is set.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]domain.LogRecord, error) { return nil, ErrCacheMiss }

func (Nop) Set(context.Context, string, []domain.LogRecord, time.Duration) error { return nil }

func (Nop) BuildKey(conversationID string, limit int) string {
	return conversationID + ":" + strconv.Itoa(limit)
}

func (Nop) Close() error { return nil }
