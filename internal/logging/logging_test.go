package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/PriceEngine/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	logger, closer := New(config.LoggingConfig{
		Level:     "warn",
		Format:    "json",
		Output:    path,
		MaxSizeMB: 1,
	})

	logger.Info("dropped")
	logger.Warn("weights reloaded", "fingerprint", "abc123")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "weights reloaded", line["msg"])
	assert.Equal(t, "abc123", line["fingerprint"])
	assert.NotContains(t, string(data), "dropped")
}
