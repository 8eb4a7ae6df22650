package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	loggerMu sync.RWMutex
	logger   zerolog.Logger
)

// initLevel initializes the log level and the backing logger from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))

		loggerMu.Lock()
		logger = newLogger(os.Stderr, os.Getenv("LOG_FORMAT"))
		loggerMu.Unlock()
	})
}

// parseLevel resolves the level from the DEBUG and LOG_LEVEL values.
// DEBUG wins when it is truthy.
func parseLevel(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		// Default to Info level (no debug logs)
		return LevelInfo
	}
}

// newLogger builds the zerolog backend. "console" gives human readable
// output, anything else emits JSON lines.
func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetOutput redirects log output, keeping the configured level.
// Intended for tests and for the CLI, which logs to stderr in console format.
func SetOutput(w io.Writer, format string) {
	initLevel()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(w, format)
}

func current() *zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	l := logger
	return &l
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		current().Debug().Msgf(format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		current().Info().Msgf(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		current().Warn().Msgf(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		current().Error().Msgf(format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	initLevel()
	current().Fatal().Msgf(format, args...)
}

// Printf writes a message that should always print, regardless of level
func Printf(format string, args ...interface{}) {
	initLevel()
	current().Log().Msgf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// AccessEntry describes one served HTTP request.
type AccessEntry struct {
	ClientIP  string
	Method    string
	Path      string
	Query     string
	Status    int
	Bytes     int64
	Duration  time.Duration
	UserAgent string
	Referer   string
}

// Access writes an access log record regardless of level.
func Access(e AccessEntry) {
	initLevel()
	ev := current().Log().
		Str("client_ip", e.ClientIP).
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Int64("bytes", e.Bytes).
		Dur("duration", e.Duration)
	if e.Query != "" {
		ev = ev.Str("query", e.Query)
	}
	if e.UserAgent != "" {
		ev = ev.Str("user_agent", e.UserAgent)
	}
	if e.Referer != "" {
		ev = ev.Str("referer", e.Referer)
	}
	ev.Msg("request")
}
