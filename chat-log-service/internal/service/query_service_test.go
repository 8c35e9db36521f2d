package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/cache"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/metrics"
)

type fakeReader struct {
	calls   atomic.Int32
	records []domain.LogRecord
	err     error
	gotConv string
	gotLim  int
}

func (r *fakeReader) Records(_ context.Context, conversationID string, limit int) ([]domain.LogRecord, error) {
	r.calls.Add(1)
	r.gotConv, r.gotLim = conversationID, limit
	return r.records, r.err
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]domain.LogRecord
	sets  chan string
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]domain.LogRecord), sets: make(chan string, 8)}
}

func (c *memCache) Get(_ context.Context, key string) ([]domain.LogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.items[key]; ok {
		return r, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *memCache) Set(_ context.Context, key string, records []domain.LogRecord, _ time.Duration) error {
	c.mu.Lock()
	c.items[key] = records
	c.mu.Unlock()
	c.sets <- key
	return nil
}

func (c *memCache) BuildKey(conversationID string, limit int) string {
	return cache.Nop{}.BuildKey(conversationID, limit)
}

func (c *memCache) Close() error { return nil }

func sampleRecords() []domain.LogRecord {
	id := int64(7)
	return []domain.LogRecord{{ConversationID: "general", MessageID: &id, Sender: "alice", Content: "hi", Status: "active"}}
}

func TestRecordsClampsLimit(t *testing.T) {
	reader := &fakeReader{}
	svc := NewQueryService(reader, nil, time.Minute, metrics.New(prometheus.NewRegistry()))

	_, err := svc.Records(context.Background(), "general", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecordsLimit, reader.gotLim)

	_, err = svc.Records(context.Background(), "general", 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxRecordsLimit, reader.gotLim)
}

func TestRecordsRequiresConversation(t *testing.T) {
	svc := NewQueryService(&fakeReader{}, nil, time.Minute, metrics.New(prometheus.NewRegistry()))

	_, err := svc.Records(context.Background(), "  ", 10)
	assert.ErrorIs(t, err, ErrConversationRequired)
}

func TestRecordsEmptyListIsNotNil(t *testing.T) {
	svc := NewQueryService(&fakeReader{}, nil, time.Minute, metrics.New(prometheus.NewRegistry()))

	resp, err := svc.Records(context.Background(), "general", 10)
	require.NoError(t, err)
	assert.NotNil(t, resp.Records)
	assert.Empty(t, resp.Records)
}

func TestRecordsServedFromCacheAfterFirstRead(t *testing.T) {
	reader := &fakeReader{records: sampleRecords()}
	c := newMemCache()
	m := metrics.New(prometheus.NewRegistry())
	svc := NewQueryService(reader, c, time.Minute, m)

	first, err := svc.Records(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, first.Records, 1)

	select {
	case key := <-c.sets:
		assert.Equal(t, "general:10", key)
	case <-time.After(time.Second):
		t.Fatal("records were not cached")
	}

	second, err := svc.Records(context.Background(), "general", 10)
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, int32(1), reader.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))
}

func TestRecordsReaderErrorIsWrapped(t *testing.T) {
	boom := errors.New("cassandra down")
	svc := NewQueryService(&fakeReader{err: boom}, nil, time.Minute, metrics.New(prometheus.NewRegistry()))

	_, err := svc.Records(context.Background(), "general", 10)
	assert.ErrorIs(t, err, boom)
}
