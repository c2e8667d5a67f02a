package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "", want: slog.LevelInfo},
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "warning", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "trace", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer

	log, closer, err := New(Options{Level: "info"}, &buf)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, closer.Close())
	}()

	log.Debug("hidden")
	log.Info("Push completed", "accepted", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Push completed", entry["msg"])
	assert.InDelta(t, 2, entry["accepted"], 0)
}

func TestNew_ExplicitText(t *testing.T) {
	var buf bytes.Buffer

	log, _, err := New(Options{Level: "debug", Format: "text"}, &buf)
	require.NoError(t, err)

	log.Debug("Operation recorded", "entity_id", "cart-1")
	assert.Contains(t, buf.String(), "msg=\"Operation recorded\"")
	assert.Contains(t, buf.String(), "entity_id=cart-1")
}

func TestNew_RegularFileIsNotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	assert.False(t, useText("auto", f))
	assert.True(t, useText("text", f))
}

func TestNew_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	log, closer, err := New(Options{Level: "info", File: path}, os.Stderr)
	require.NoError(t, err)

	log.Info("Sync service initialized", "device_id", "dev-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"device_id":"dev-1"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
