// Package logging provides structured logging for the studio RPC client and peer.
// It wraps log/slog with component scoping, redaction and optional rotated file output.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a LogLevel, defaulting to InfoLevel
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured logging with context support
type Logger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
}

// Rotation controls lumberjack rotation for file output
type Rotation struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Config represents logging configuration
type Config struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", "discard" or file path
	Component string
	Rotation  Rotation
}

// DefaultConfig returns a sensible default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Format:    "text",
		Output:    "stdout",
		Component: "studiorpc",
		Rotation: Rotation{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	output, err := openOutput(config)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "token" || strings.Contains(strings.ToLower(a.Key), "password") {
				return slog.String(a.Key, "[REDACTED]")
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		logger:    slog.New(handler),
		level:     config.Level,
		component: config.Component,
	}, nil
}

// NewDiscardLogger returns a logger that drops everything, used by tests
func NewDiscardLogger() *Logger {
	return &Logger{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:     ErrorLevel + 1,
		component: "discard",
	}
}

func openOutput(config Config) (io.Writer, error) {
	switch config.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.Output), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", config.Output, err)
	}

	return &lumberjack.Logger{
		Filename:   config.Output,
		MaxSize:    max(config.Rotation.MaxSizeMB, 1),
		MaxBackups: max(config.Rotation.MaxBackups, 1),
		MaxAge:     max(config.Rotation.MaxAgeDays, 1),
		Compress:   config.Rotation.Compress,
	}, nil
}

// slogLevel converts our LogLevel to slog.Level
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext creates a new logger with additional context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", l.component)),
		level:     l.level,
		component: l.component,
	}
}

// WithComponent creates a new logger for a specific component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", component)),
		level:     l.level,
		component: component,
	}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.Any(key, value)),
		level:     l.level,
		component: l.component,
	}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		logger:    l.logger.With(args...),
		level:     l.level,
		component: l.component,
	}
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.logger.Debug(msg, args...)
	}
}

// Info logs an info level message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.logger.Info(msg, args...)
	}
}

// Warn logs a warning level message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.logger.Warn(msg, args...)
	}
}

// Error logs an error level message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.logger.Error(msg, args...)
	}
}

// LogOperation logs the start and end of an operation with duration
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	opLogger := l.WithField("operation", operation)

	opLogger.Debug("Operation starting")

	err := fn()
	duration := time.Since(start)

	if err != nil {
		opLogger.Error("Operation failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return err
	}

	opLogger.Info("Operation completed",
		slog.Duration("duration", duration))
	return nil
}

// LogConnectionAttempt logs a dial towards the peer
func (l *Logger) LogConnectionAttempt(url string, state string) {
	l.Info("Attempting connection",
		slog.String("url", url),
		slog.String("state", state))
}

// LogConnectionSuccess logs successful connection establishment
func (l *Logger) LogConnectionSuccess(url string, duration time.Duration) {
	l.Info("Connection established",
		slog.String("url", url),
		slog.Duration("connection_duration", duration))
}

// LogConnectionFailure logs connection failure with detailed context
func (l *Logger) LogConnectionFailure(url string, err error, duration time.Duration) {
	l.Warn("Connection failed",
		slog.String("url", url),
		slog.String("error", err.Error()),
		slog.Duration("attempt_duration", duration))
}

// LogStateTransition logs a transport state machine transition
func (l *Logger) LogStateTransition(from string, to string, reason string) {
	l.Debug("Connection state change",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("reason", reason))
}

// LogReconnectAttempt logs a scheduled reconnection attempt
func (l *Logger) LogReconnectAttempt(attempt int, maxAttempts int, delay time.Duration) {
	l.Info("Scheduling reconnect",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.Duration("delay", delay))
}

// LogCallSettled logs how a correlated call ended
func (l *Logger) LogCallSettled(id uint64, method string, outcome string, duration time.Duration) {
	l.Debug("Call settled",
		slog.Uint64("id", id),
		slog.String("method", method),
		slog.String("outcome", outcome),
		slog.Duration("duration", duration))
}

// LogDispatch logs a dispatched request on the peer side; code is 0 on success
func (l *Logger) LogDispatch(id uint64, method string, code int, duration time.Duration) {
	fields := []interface{}{
		slog.Uint64("id", id),
		slog.String("method", method),
		slog.Duration("duration", duration),
	}
	if code != 0 {
		fields = append(fields, slog.Int("error_code", code))
		l.Info("Request failed", fields...)
		return
	}
	l.Debug("Request handled", fields...)
}

// LogConfigLoad logs configuration loading operations
func (l *Logger) LogConfigLoad(configPath string, profileName string) {
	l.Debug("Loading configuration",
		slog.String("config_path", configPath),
		slog.String("profile", profileName))
}

// LogConfigError logs configuration-related errors
func (l *Logger) LogConfigError(operation string, err error) {
	l.Error("Configuration error",
		slog.String("operation", operation),
		slog.String("error", err.Error()))
}

// LogUIStateChange logs user interface state transitions
func (l *Logger) LogUIStateChange(from string, to string, reason string) {
	l.Debug("UI state change",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("reason", reason))
}

var (
	globalLogger *Logger
	globalMutex  sync.Mutex
)

// InitGlobalLogger initializes the global logger with the specified configuration
func InitGlobalLogger(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global logger: %w", err)
	}
	globalMutex.Lock()
	globalLogger = logger
	globalMutex.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	if globalLogger == nil {
		// Fallback to default configuration if not initialized
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}

// Component-specific logger creators
func GetProtocolLogger() *Logger {
	return GetGlobalLogger().WithComponent("protocol")
}

func GetDispatchLogger() *Logger {
	return GetGlobalLogger().WithComponent("dispatcher")
}

func GetStudioLogger() *Logger {
	return GetGlobalLogger().WithComponent("studio")
}

func GetConfigLogger() *Logger {
	return GetGlobalLogger().WithComponent("config")
}

func GetUILogger() *Logger {
	return GetGlobalLogger().WithComponent("ui")
}
