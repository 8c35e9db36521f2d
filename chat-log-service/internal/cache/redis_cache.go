package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
)

type RedisRecordsCache struct {
	client *redis.Client
	prefix string
}

func NewRedisRecordsCache(cfg config.CacheConfig) (*RedisRecordsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRecordsCacheFromClient(client, cfg.Prefix), nil
}

// NewRedisRecordsCacheFromClient wraps an existing client.
func NewRedisRecordsCacheFromClient(client *redis.Client, prefix string) *RedisRecordsCache {
	return &RedisRecordsCache{client: client, prefix: prefix}
}

func (c *RedisRecordsCache) BuildKey(conversationID string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, conversationID, limit)
}

func (c *RedisRecordsCache) Get(ctx context.Context, key string) ([]domain.LogRecord, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var records []domain.LogRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return records, nil
}

func (c *RedisRecordsCache) Set(ctx context.Context, key string, records []domain.LogRecord, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisRecordsCache) Close() error {
	return c.client.Close()
}
