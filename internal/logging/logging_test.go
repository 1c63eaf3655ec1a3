package logging

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func initBuffer(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, InfoLevel, cfg.Level)
	assert.Equal(t, os.Stderr, cfg.Output)
	assert.False(t, cfg.Pretty)
	assert.Equal(t, time.RFC3339, cfg.TimeFormat)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"  warn  ", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"FATAL", FatalLevel},
		{"", InfoLevel},
		{"nonsense", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "ParseLevel(%q)", tt.input)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := initBuffer(t, WarnLevel)

	Debug().Msg("quiet debug")
	Info().Msg("quiet info")
	Warn().Msg("loud warn")
	Error().Msg("loud error")

	out := buf.String()
	assert.NotContains(t, out, "quiet debug")
	assert.NotContains(t, out, "quiet info")
	assert.Contains(t, out, "loud warn")
	assert.Contains(t, out, "loud error")
}

func TestStructuredFields(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	Info().Str("tool", "bash").Int("attempt", 2).Msg("retrying")

	out := buf.String()
	assert.Contains(t, out, `"tool":"bash"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, "retrying")
}

func TestComponentLogger(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	logger := Component("dispatcher")
	logger.Info().Msg("turn started")

	out := buf.String()
	assert.Contains(t, out, `"component":"dispatcher"`)
	assert.Contains(t, out, "turn started")
}

func TestWithContext(t *testing.T) {
	buf := initBuffer(t, InfoLevel)

	child := With().Str("session", "s-1").Logger()
	child.Info().Msg("attached")

	assert.Contains(t, buf.String(), `"session":"s-1"`)
}

func TestPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf, Pretty: true})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
}

func TestInitDefaultsNilOutput(t *testing.T) {
	// Nil output falls back to stderr instead of panicking.
	Init(Config{Level: InfoLevel})
	t.Cleanup(func() { Init(DefaultConfig()) })
	Info().Msg("stderr fallback")
}
