package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	previous := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = previous })

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	WithContext(ctx).Info("com id")
	WithContext(context.Background()).Info("sem id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestInitLevels(t *testing.T) {
	previous := Log
	t.Cleanup(func() { Log = previous })

	require.NoError(t, Init("warn", "json", false))
	assert.False(t, Log.Core().Enabled(zap.InfoLevel))
	assert.True(t, Log.Core().Enabled(zap.WarnLevel))

	require.NoError(t, Init("debug", "console", true))
	assert.True(t, Log.Core().Enabled(zap.DebugLevel))
}
