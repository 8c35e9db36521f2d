package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/config"
)

func newTestRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := NewRedisRegistryFromClient(client, config.RegistryConfig{
		Prefix:            "gateway",
		KeyTTL:            30 * time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { reg.Close() })
	return reg, mr
}

func TestRegisterAndList(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, Instance{ID: "gw-b", HTTPAddress: "10.0.0.2:8080"}))

	other := NewRedisRegistryFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), config.RegistryConfig{Prefix: "gateway", KeyTTL: 30 * time.Second})
	t.Cleanup(func() { other.Close() })
	require.NoError(t, other.Register(ctx, Instance{ID: "gw-a", HTTPAddress: "10.0.0.1:8080"}))

	instances, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "gw-a", instances[0].ID)
	assert.Equal(t, "gw-b", instances[1].ID)
	assert.False(t, instances[0].StartedAt.IsZero())

	assert.True(t, mr.Exists("gateway:instance:gw-b"))
	assert.Equal(t, 30*time.Second, mr.TTL("gateway:instance:gw-b"))
}

func TestHeartbeatPublishesSessionCount(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, Instance{ID: "gw-a"}))
	require.NoError(t, reg.StartHeartbeat(ctx, func() int { return 5 }))

	require.Eventually(t, func() bool {
		instances, err := reg.List(ctx)
		return err == nil && len(instances) == 1 && instances[0].Sessions == 5
	}, time.Second, 10*time.Millisecond)
	reg.StopHeartbeat()
}

func TestDeregisterRemovesEntry(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, Instance{ID: "gw-a"}))
	require.NoError(t, reg.Deregister(ctx))
	require.NoError(t, reg.Deregister(ctx))

	assert.False(t, mr.Exists("gateway:instance:gw-a"))
	instances, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestExpiredEntriesDisappear(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, Instance{ID: "gw-a"}))
	mr.FastForward(31 * time.Second)

	instances, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, instances)
}
