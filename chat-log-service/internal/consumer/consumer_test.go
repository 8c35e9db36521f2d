package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

type memStore struct {
	mu      sync.Mutex
	records []domain.LogRecord
	failOn  string
}

func (s *memStore) Append(_ context.Context, rec *domain.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && rec.Content == s.failOn {
		return errors.New("write timeout")
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) snapshot() []domain.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogRecord(nil), s.records...)
}

type fixture struct {
	bus      *pubsub.MemoryPubSub
	store    *memStore
	metrics  *metrics.Metrics
	consumer *Consumer
	runErr   chan error
	cancel   context.CancelFunc
}

func start(t *testing.T) *fixture {
	t.Helper()
	bus := pubsub.NewMemoryPubSub()
	st := &memStore{failOn: "poison"}
	m := metrics.New(prometheus.NewRegistry())
	c := New(bus, st, events.NewLedger(100), m, "", 16)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	f := &fixture{bus: bus, store: st, metrics: m, consumer: c, runErr: make(chan error, 1), cancel: cancel}
	go func() { f.runErr <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		bus.Close()
	})
	return f
}

func (f *fixture) publish(t *testing.T, payload string) {
	t.Helper()
	require.NoError(t, f.bus.Publish(context.Background(), events.TopicMessageEvents, "general", []byte(payload)))
}

func TestConsumerAppendsEachEventOnce(t *testing.T) {
	f := start(t)

	f.publish(t, `{"id":42,"conversationId":"general","sender":"alice","content":"hi","type":"text","status":"active"}`)
	f.publish(t, `{"id":42,"conversationId":"general","sender":"alice","content":"hi","type":"text","status":"active"}`)
	f.publish(t, `not json`)
	f.publish(t, `{"content":"no id","sender":""}`)
	f.publish(t, `{"id":42,"status":"recalled","conversationId":"general"}`)
	f.publish(t, `{"id":42,"conversationId":"general","sender":"alice","content":"hi","type":"text","status":"active"}`)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Recorded) == 3 &&
			testutil.ToFloat64(f.metrics.Malformed) == 1 &&
			testutil.ToFloat64(f.metrics.Skipped.WithLabelValues(events.Superseded.String())) == 1
	}, time.Second, 10*time.Millisecond)

	records := f.store.snapshot()
	require.Len(t, records, 3)
	assert.Equal(t, "hi", records[0].Content)
	assert.Equal(t, domain.UnknownSender, records[1].Sender)
	assert.Nil(t, records[1].MessageID)
	assert.Equal(t, events.StatusRecalled, records[2].Status)
	assert.Equal(t, events.TypeRecall, records[2].Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Skipped.WithLabelValues(events.Duplicate.String())))
}

func TestConsumerContinuesAfterStoreFailure(t *testing.T) {
	f := start(t)

	f.publish(t, `{"id":1,"sender":"alice","content":"poison"}`)
	f.publish(t, `{"id":2,"sender":"alice","content":"fine"}`)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.Recorded) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StoreFailed))
	assert.Equal(t, "fine", f.store.snapshot()[0].Content)
}

func TestConsumerReportsLostSubscription(t *testing.T) {
	f := start(t)

	f.bus.DropSubscriptions(events.TopicMessageEvents)

	select {
	case err := <-f.runErr:
		assert.ErrorIs(t, err, ErrSubscriptionLost)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.BusUp))
}

func TestConsumerStopsCleanlyOnCancel(t *testing.T) {
	f := start(t)
	f.cancel()

	select {
	case err := <-f.runErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerSharesGroupAcrossReplicas(t *testing.T) {
	bus := pubsub.NewMemoryPubSub()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := []*memStore{{}, {}}
	for _, st := range stores {
		c := New(bus, st, events.NewLedger(100), metrics.New(prometheus.NewRegistry()), "", 16)
		require.NoError(t, c.Start(ctx))
		go c.Run(ctx)
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, bus.Publish(ctx, events.TopicMessageEvents, "general", []byte(`{"content":"hello"}`)))
	}

	require.Eventually(t, func() bool {
		return len(stores[0].snapshot())+len(stores[1].snapshot()) == 4
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, stores[0].snapshot(), 2)
	assert.Len(t, stores[1].snapshot(), 2)
}
