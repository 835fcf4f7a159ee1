package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/types"
)

// setupRedisRegistry creates a test registry backed by miniredis.
func setupRedisRegistry(t *testing.T, opts ...RedisOption) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisRegistry(client, opts...), mr
}

func TestRedisRegistryCreateLookup(t *testing.T) {
	reg, _ := setupRedisRegistry(t)

	id, err := reg.Create(context.Background(), "topic X", testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := reg.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "topic X", sess.Topic)
	assert.Len(t, sess.Config.SystemPrompts, 2)
}

func TestRedisRegistryUnknownID(t *testing.T) {
	reg, _ := setupRedisRegistry(t)

	_, err := reg.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistryRejectsInvalidConfig(t *testing.T) {
	reg, _ := setupRedisRegistry(t)

	cfg := testConfig()
	cfg.SystemPrompts = cfg.SystemPrompts[:1]
	_, err := reg.Create(context.Background(), "X", cfg)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestRedisRegistryTTL(t *testing.T) {
	reg, mr := setupRedisRegistry(t, WithRedisTTL(time.Minute))

	id, err := reg.Create(context.Background(), "X", testConfig())
	require.NoError(t, err)

	_, err = reg.Lookup(context.Background(), id)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = reg.Lookup(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistryDelete(t *testing.T) {
	reg, _ := setupRedisRegistry(t)

	id, err := reg.Create(context.Background(), "X", testConfig())
	require.NoError(t, err)

	require.NoError(t, reg.Delete(context.Background(), id))
	_, err = reg.Lookup(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistryKeyPrefix(t *testing.T) {
	reg, mr := setupRedisRegistry(t, WithPrefix("custom"))

	id, err := reg.Create(context.Background(), "X", testConfig())
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:session:"+id))
}
