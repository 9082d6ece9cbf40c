package logging

import (
	"context"
	"fmt"
	"os"
	"time"
)

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger configures the global logger from LOG_LEVEL and LOG_FILE.
// Without LOG_FILE the logger writes to stderr so command output on stdout
// stays machine readable.
func InitGlobalLogger(level, file string) error {
	output := os.Stderr
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", file, err)
		}
		output = f
	}

	logger, err := NewZapLogger(LogConfig{
		Level:      ParseLevel(level),
		Output:     output,
		TimeFormat: time.RFC3339,
		Prefix:     "grant-insights",
	})
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)

	logger.Debug("Logger initialized",
		Field{"level", ParseLevel(level).String()},
		Field{"log_file", file},
	)
	return nil
}

// MustSync flushes any buffered log entries; call it before exit
func MustSync() {
	if z, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = z.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Component returns the global logger scoped to a named component
func Component(name string) Logger {
	return GetGlobalLogger().WithFields(Field{"component", name})
}
