package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "custom json config", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info().Str("table", "orders").Msg("described")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "described", entry["message"])
	assert.Equal(t, "orders", entry["table"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_ChildFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	child := log.With().
		Str("job", "3f1c").
		Int("targets", 5).
		Logger()

	child.Info().Msg("job started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "3f1c", entry["job"])
	assert.Equal(t, float64(5), entry["targets"])
	assert.Equal(t, "job started", entry["message"])
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "warn", Format: "json", Output: buf})

	log.Debug().Msg("dropped")
	log.Info().Msg("dropped too")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	got := FromContext(ctx)

	got.Info().Msg("via context")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "via context", entry["message"])
}

func TestNop(t *testing.T) {
	// Must not panic and must not write anywhere.
	Nop().Error().Msg("into the void")
}
