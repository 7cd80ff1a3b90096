package observability

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabledProviderIsUsable(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	assert.NotNil(t, p.Tracer())
	// Recording through a disabled provider must not panic.
	p.RecordRequest(context.Background(), true, 120*time.Millisecond, 3)
	p.RecordRequest(context.Background(), false, 40*time.Millisecond, 0)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "debug", "nonsense", ""} {
		logger := NewLogger(level)
		require.NotNil(t, logger)
	}

	assert.True(t, NewLogger("DEBUG").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewLogger("ERROR").Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, NewLogger("nonsense").Enabled(context.Background(), slog.LevelDebug),
		"unknown level falls back to info")
}
