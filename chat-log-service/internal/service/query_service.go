package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/store"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const (
	DefaultRecordsLimit = 50
	MaxRecordsLimit     = 500
)

var ErrConversationRequired = errors.New("conversation id is required")

type queryServiceImpl struct {
	reader   store.Reader
	cache    cache.RecordsCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	sf       singleflight.Group
}

func NewQueryService(reader store.Reader, recordsCache cache.RecordsCache, cacheTTL time.Duration, m *metrics.Metrics) QueryService {
	if recordsCache == nil {
		recordsCache = cache.Nop{}
	}
	return &queryServiceImpl{
		reader:   reader,
		cache:    recordsCache,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

func (s *queryServiceImpl) Records(ctx context.Context, conversationID string, limit int) (*domain.RecordsResponse, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrConversationRequired
	}
	if limit <= 0 {
		limit = DefaultRecordsLimit
	}
	if limit > MaxRecordsLimit {
		limit = MaxRecordsLimit
	}

	cacheKey := s.cache.BuildKey(conversationID, limit)
	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, conversationID, limit, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	records, ok := result.([]domain.LogRecord)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return &domain.RecordsResponse{ConversationID: conversationID, Records: records}, nil
}

func (s *queryServiceImpl) fetchWithCache(ctx context.Context, conversationID string, limit int, cacheKey string) ([]domain.LogRecord, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		s.metrics.CacheHits.Inc()
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}
	s.metrics.CacheMisses.Inc()

	records, err := s.reader.Records(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read log records: %w", err)
	}
	if records == nil {
		records = []domain.LogRecord{}
	}

	// Empty conversations are not cached so new records show up at once.
	if len(records) > 0 {
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.Set(cacheCtx, cacheKey, records, s.cacheTTL); err != nil {
				l := log.L()
				l.Warn().Err(err).Msg("cache set error")
			}
		}()
	}

	return records, nil
}
