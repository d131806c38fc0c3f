package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("unknown"))
}

func TestNewHandler(t *testing.T) {
	t.Parallel()

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, Config{Level: "info", Format: "json"}))
		log.Info("hello", slog.String("key", "value"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, Config{Level: "info", Format: "text"}))
		log.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filters output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, Config{Level: "error", Format: "json"}))
		log.Info("dropped")
		assert.Empty(t, buf.String())

		log.Error("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := NewNope()
	require.NotNil(t, log)
	log.Info("discarded")
}
