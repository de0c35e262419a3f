// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
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

// FileConfig configures an additional rotating log file.
type FileConfig struct {
	// Path of the log file; empty disables file output.
	Path string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File adds JSON output to a rotating file.
	File FileConfig
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
		File: FileConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

var (
	fileMu sync.Mutex
	file   *lumberjack.Logger
)

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	if cfg.File.Path != "" {
		output = zerolog.MultiLevelWriter(output, openFile(cfg.File))
	} else {
		closeFile()
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// openFile swaps in a rotating file writer, closing any previous one.
func openFile(cfg FileConfig) *lumberjack.Logger {
	fileMu.Lock()
	defer fileMu.Unlock()

	if file != nil {
		file.Close()
	}
	file = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return file
}

func closeFile() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// Close flushes and closes the log file opened by Setup, if any.
func Close() error {
	return closeFile()
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Individual chart and forecast requests
//   - Circuit breaker half-open trials
//
// Info: Normal operation events
//   - Run start and completion, with the batch report
//   - Group resolved
//   - Rows written to the database
//   - Run report sent
//
// Warn: Warning conditions that don't prevent operation
//   - A dispatch round with failed items (group will be resubmitted)
//   - Circuit breaker state changes
//   - Cache errors (fallback to direct request)
//   - Notification failures
//
// Error: Error conditions requiring attention
//   - Group unresolved after the last attempt
//   - Persisting the batch failed
//   - Configuration errors
//
// Context Fields:
//   - component: package emitting the log (batch, astronomy-client, store, ...)
//   - job: job name (constellations, locations)
//   - group: zero-based group index
//   - attempt: dispatch round within a group
//   - failed_ids: item IDs that failed in a round
//   - kind: chart kind (constellation, area, moon-phase)
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, payload)
//   - backoff: wait before the next round
