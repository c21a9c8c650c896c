// Package logging configures the zerolog logger shared by the CAS client,
// the dashboard pages and the casboard binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown levels map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Validate reports an unknown level name. An empty level is valid (info).
func (l LogLevel) Validate() error {
	switch strings.ToLower(strings.TrimSpace(string(l))) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", string(l))
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each fetched collection page (url, shape, item count)
//   - Enrichment claims, label writes and misses
//   - Label cache operations
//
// Info: Normal operation events
//   - Completed drains and page loads (rows, duration)
//   - Completed write actions
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed primary loads (the page shows the error)
//   - Lookup collections that failed and render raw ids
//   - Label cache errors (enrichment continues without the cache)
//   - Failed write actions
//
// Error: Error conditions requiring attention
//   - Configuration errors
//   - Server failures
//
// Context Fields:
//   - component: package emitting the event
//   - page: dashboard page name
//   - url: requested URL
//   - status: HTTP status code
//   - error_class: error classification (client, server, network)
//   - kind, id: enrichment target
//   - duration: request or drain duration
