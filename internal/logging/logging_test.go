package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("warn", false, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("url", "https://h/m.m3u8").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "https://h/m.m3u8", entry["url"])
	assert.Contains(t, entry, "time")
}

func TestSetupLevels(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, zerolog.InfoLevel, SetupWithWriter("nonsense", false, &buf).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, SetupWithWriter("", false, &buf).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, SetupWithWriter("debug", false, &buf).GetLevel())
	assert.Equal(t, zerolog.Disabled, SetupWithWriter("disabled", false, &buf).GetLevel())
}

func TestSetupPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("info", true, &buf)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()), "console output is not JSON")
}
