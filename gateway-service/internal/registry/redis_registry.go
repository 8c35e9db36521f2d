package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type RedisRegistry struct {
	client            *redis.Client
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	instance          *Instance
	mu                sync.Mutex
	cancel            context.CancelFunc
}

func NewRedisRegistry(cfg config.RegistryConfig) (*RedisRegistry, error) {
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

	return NewRedisRegistryFromClient(client, cfg), nil
}

// NewRedisRegistryFromClient wraps an existing client.
func NewRedisRegistryFromClient(client *redis.Client, cfg config.RegistryConfig) *RedisRegistry {
	return &RedisRegistry{
		client:            client,
		prefix:            cfg.Prefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
	}
}

func (r *RedisRegistry) keyFor(id string) string {
	return fmt.Sprintf("%s:instance:%s", r.prefix, id)
}

func (r *RedisRegistry) Register(ctx context.Context, inst Instance) error {
	inst.UpdatedAt = time.Now().UTC()
	if inst.StartedAt.IsZero() {
		inst.StartedAt = inst.UpdatedAt
	}

	if err := r.write(ctx, inst); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}

	r.mu.Lock()
	r.instance = &inst
	r.mu.Unlock()

	l := log.L()
	l.Info().Str(log.FieldInstance, inst.ID).Str("address", inst.HTTPAddress).Msg("registered gateway instance")
	return nil
}

func (r *RedisRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	inst := r.instance
	r.instance = nil
	r.mu.Unlock()
	if inst == nil {
		return nil
	}

	if err := r.client.Del(ctx, r.keyFor(inst.ID)).Err(); err != nil {
		return fmt.Errorf("failed to deregister instance: %w", err)
	}

	l := log.L()
	l.Info().Str(log.FieldInstance, inst.ID).Msg("deregistered gateway instance")
	return nil
}

// List scans for live instances, ordered by id.
func (r *RedisRegistry) List(ctx context.Context) ([]Instance, error) {
	var instances []Instance

	iter := r.client.Scan(ctx, 0, r.prefix+":instance:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read instance: %w", err)
		}
		var inst Instance
		if err := json.Unmarshal(data, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan instances: %w", err)
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances, nil
}

func (r *RedisRegistry) StartHeartbeat(ctx context.Context, sessions func() int) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx, sessions)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("registry heartbeat started")
	return nil
}

func (r *RedisRegistry) heartbeatLoop(ctx context.Context, sessions func() int) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx, sessions())
		}
	}
}

func (r *RedisRegistry) refresh(ctx context.Context, sessions int) {
	r.mu.Lock()
	if r.instance == nil {
		r.mu.Unlock()
		return
	}
	r.instance.Sessions = sessions
	r.instance.UpdatedAt = time.Now().UTC()
	inst := *r.instance
	r.mu.Unlock()

	if err := r.write(ctx, inst); err != nil {
		l := log.L()
		l.Error().Str(log.FieldInstance, inst.ID).Err(err).Msg("failed to refresh instance")
	}
}

func (r *RedisRegistry) write(ctx context.Context, inst Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyFor(inst.ID), data, r.keyTTL).Err()
}

func (r *RedisRegistry) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisRegistry) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}

// NopRegistry is used when no registry is configured.
type NopRegistry struct{}

func (NopRegistry) Register(context.Context, Instance) error { return nil }
func (NopRegistry) Deregister(context.Context) error { return nil }
func (NopRegistry) List(context.Context) ([]Instance, error) { return nil, nil }
func (NopRegistry) StartHeartbeat(context.Context, func() int) error { return nil }
func (NopRegistry) StopHeartbeat() {}
func (NopRegistry) Close() error { return nil }
