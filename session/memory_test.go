package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/types"
)

func testConfig() types.DebateConfig {
	return types.DebateConfig{
		NumRounds:            1,
		NumDebaters:          2,
		Temperature:          0.5,
		MaxTokensPerResponse: 200,
		SystemPrompts: []types.SystemPrompt{
			{Role: "pro", Content: "For."},
			{Role: "con", Content: "Against."},
		},
		DebateStyle: "formal",
	}
}

func TestMemoryRegistryCreateLookup(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	id, err := reg.Create(context.Background(), "topic X", testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sess, err := reg.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "topic X", sess.Topic)
	assert.Equal(t, 2, sess.Config.NumDebaters)
	assert.False(t, sess.CreatedAt.IsZero())
}

func TestMemoryRegistryUniqueIDs(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := reg.Create(context.Background(), "X", testConfig())
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate session ID %q", id)
		seen[id] = true
	}
}

func TestMemoryRegistryRejectsInvalidConfig(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	cfg := testConfig()
	cfg.NumRounds = 0
	_, err := reg.Create(context.Background(), "X", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
	assert.Equal(t, 0, reg.Len())
}

func TestMemoryRegistryUnknownID(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	_, err := reg.Lookup(context.Background(), "never-created")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryRegistryDelete(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	id, err := reg.Create(context.Background(), "X", testConfig())
	require.NoError(t, err)

	require.NoError(t, reg.Delete(context.Background(), id))
	_, err = reg.Lookup(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an unknown ID is not an error.
	assert.NoError(t, reg.Delete(context.Background(), "gone"))
}

func TestMemoryRegistryTTLExpiry(t *testing.T) {
	reg := NewMemoryRegistry(WithTTL(time.Minute))
	defer reg.Close()

	now := time.Now()
	reg.now = func() time.Time { return now }

	id, err := reg.Create(context.Background(), "X", testConfig())
	require.NoError(t, err)

	// Still fresh.
	_, err = reg.Lookup(context.Background(), id)
	require.NoError(t, err)

	// Jump past the TTL: lookup evicts lazily.
	reg.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = reg.Lookup(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, reg.Len())
}

func TestMemoryRegistrySweep(t *testing.T) {
	reg := NewMemoryRegistry(WithTTL(time.Minute))
	defer reg.Close()

	now := time.Now()
	reg.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := reg.Create(context.Background(), "X", testConfig())
		require.NoError(t, err)
	}
	require.Equal(t, 5, reg.Len())

	reg.now = func() time.Time { return now.Add(2 * time.Minute) }
	reg.sweep()
	assert.Equal(t, 0, reg.Len())
}

func TestMemoryRegistryLookupReturnsCopy(t *testing.T) {
	reg := NewMemoryRegistry()
	defer reg.Close()

	id, err := reg.Create(context.Background(), "original", testConfig())
	require.NoError(t, err)

	sess, err := reg.Lookup(context.Background(), id)
	require.NoError(t, err)
	sess.Topic = "mutated"

	again, err := reg.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Topic)
}
