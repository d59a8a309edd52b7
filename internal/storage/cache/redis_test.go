package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/lotwise/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requer um Redis real: LOTWISE_TEST_REDIS_URL=redis://localhost:6379/15
func setupTestCache(t *testing.T) (*RedisCache, string) {
	t.Helper()

	url := os.Getenv("LOTWISE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LOTWISE_TEST_REDIS_URL não definido")
	}

	client, err := NewClient(&config.Config{RedisURL: url})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	prefix := "test:" + uuid.NewString()[:8] + ":"
	c := NewRedisCache(client, time.Minute)
	t.Cleanup(func() { c.DeletePattern(context.Background(), prefix+"*") })
	return c, prefix
}

func TestRedisCacheGetSet(t *testing.T) {
	c, prefix := setupTestCache(t)
	ctx := context.Background()

	var got map[string]int
	assert.ErrorIs(t, c.Get(ctx, prefix+"missing", &got), ErrMiss)

	require.NoError(t, c.Set(ctx, prefix+"k", map[string]int{"a": 1}))
	require.NoError(t, c.Get(ctx, prefix+"k", &got))
	assert.Equal(t, 1, got["a"])

	require.NoError(t, c.Set(ctx, prefix+"short", 1, 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	var n int
	assert.ErrorIs(t, c.Get(ctx, prefix+"short", &n), ErrMiss)
}

func TestRedisCacheVersion(t *testing.T) {
	c, prefix := setupTestCache(t)
	ctx := context.Background()

	v, err := c.Version(ctx, prefix+"version")
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = c.Bump(ctx, prefix+"version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = c.Version(ctx, prefix+"version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, c.DeletePattern(ctx, prefix+"*"))
	v, err = c.Version(ctx, prefix+"version")
	require.NoError(t, err)
	assert.Zero(t, v)

	assert.NoError(t, c.HealthCheck(ctx))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(&config.Config{RedisURL: "://nope"})
	assert.Error(t, err)
}
