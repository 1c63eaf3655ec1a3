// Package logging wraps zerolog behind a package-level logger shared by the
// CLI, the server, and the headless runner. Call sites log through the
// package functions; Init swaps the sink and level for all of them at once.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it.
var Logger zerolog.Logger

// Level aliases zerolog's level type so callers don't import zerolog
// just to set a threshold.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls where log lines go and which ones are emitted.
type Config struct {
	Level      Level     // minimum level to emit
	Output     io.Writer // sink, os.Stderr when nil
	Pretty     bool      // console-style output instead of JSON
	TimeFormat string    // timestamp layout, RFC3339 when empty
}

// DefaultConfig is JSON to stderr at info level.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Init rebuilds the package logger from cfg. Safe to call more than once;
// the last call wins.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	Logger = zerolog.New(sinkFor(cfg)).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

func sinkFor(cfg Config) io.Writer {
	if !cfg.Pretty {
		return cfg.Output
	}
	return zerolog.ConsoleWriter{
		Out:        cfg.Output,
		TimeFormat: cfg.TimeFormat,
	}
}

var levelNames = map[string]Level{
	"DEBUG":   DebugLevel,
	"INFO":    InfoLevel,
	"WARN":    WarnLevel,
	"WARNING": WarnLevel,
	"ERROR":   ErrorLevel,
	"FATAL":   FatalLevel,
}

// ParseLevel maps a level name to its Level, case-insensitively.
// Unrecognized names fall back to InfoLevel rather than erroring, so a
// bad --log-level flag degrades instead of aborting.
func ParseLevel(name string) Level {
	if lvl, ok := levelNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return InfoLevel
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }

// Fatal logs and then exits the process when the event is sent.
func Fatal() *zerolog.Event { return Logger.Fatal() }

// With starts a child logger context for attaching fixed fields.
func With() zerolog.Context { return Logger.With() }

// Component returns a child logger tagged with a component name, for
// subsystems that emit many related lines.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func init() {
	Init(DefaultConfig())
}
