package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
)

// RedisPubSub implements PubSub interface using Redis PUBLISH/SUBSCRIBE.
// Redis keeps no history, so groups and FromEarliest are ignored.
type RedisPubSub struct {
	client        *redis.Client
	cfg           RedisConfig
	logger        zerolog.Logger
	subscriptions map[*redis.PubSub]struct{}
	mu            sync.Mutex
	closed        bool
}

// NewRedisPubSub creates a new Redis-based PubSub instance.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisPubSub(client, cfg), nil
}

// NewRedisPubSubFromClient wraps an existing client.
func NewRedisPubSubFromClient(client *redis.Client, cfg RedisConfig) *RedisPubSub {
	return newRedisPubSub(client, cfg)
}

func newRedisPubSub(client *redis.Client, cfg RedisConfig) *RedisPubSub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Second
	}
	if cfg.MaxPingFailures <= 0 {
		cfg.MaxPingFailures = 3
	}
	return &RedisPubSub{
		client:        client,
		cfg:           cfg,
		logger:        pkglog.L().With().Str("component", "pubsub.redis").Logger(),
		subscriptions: make(map[*redis.PubSub]struct{}),
	}
}

// Publish publishes payload to the topic channel.
func (r *RedisPubSub) Publish(ctx context.Context, topic, _ string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe subscribes to topic and waits for the server confirmation.
func (r *RedisPubSub) Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (<-chan *Delivery, error) {
	o := buildOptions(opts)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, topic, err)
	}

	r.mu.Lock()
	r.subscriptions[ps] = struct{}{}
	r.mu.Unlock()

	out := make(chan *Delivery, o.Buffer)
	lost := make(chan struct{})

	go r.watch(ctx, topic, lost)
	go r.forward(ctx, topic, ps, out, lost)

	return out, nil
}

// watch pings the server and closes lost after MaxPingFailures
// consecutive failures. go-redis reconnects a PubSub silently, which would
// hide messages published while the connection was down.
func (r *RedisPubSub) watch(ctx context.Context, topic string, lost chan<- struct{}) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, r.cfg.PingInterval)
		err := r.client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		r.logger.Warn().Err(err).Str(pkglog.FieldTopic, topic).Int("failures", failures).Msg("redis ping failed")
		if failures >= r.cfg.MaxPingFailures {
			close(lost)
			return
		}
	}
}

func (r *RedisPubSub) forward(ctx context.Context, topic string, ps *redis.PubSub, out chan<- *Delivery, lost <-chan struct{}) {
	defer close(out)
	defer func() {
		r.mu.Lock()
		delete(r.subscriptions, ps)
		r.mu.Unlock()
		ps.Close()
	}()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-lost:
			r.logger.Error().Str(pkglog.FieldTopic, topic).Msg("redis subscription lost")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			d := &Delivery{
				Topic:      msg.Channel,
				Payload:    []byte(msg.Payload),
				ReceivedAt: time.Now(),
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			case <-lost:
				return
			}
		}
	}
}

// Ping checks the Redis connection.
func (r *RedisPubSub) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes all subscriptions and the Redis client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for ps := range r.subscriptions {
		ps.Close()
	}
	r.subscriptions = make(map[*redis.PubSub]struct{})

	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations.
func (r *RedisPubSub) GetClient() *redis.Client {
	return r.client
}
