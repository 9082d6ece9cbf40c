package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"Error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestDefaultLogConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	config := DefaultLogConfig()

	assert.Equal(t, InfoLevel, config.Level)
	assert.Nil(t, config.Output)
}

func TestLogger_LogLevels(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	tests := []struct {
		name     string
		logFunc  func()
		contains []string
	}{
		{
			name:     "debug log",
			logFunc:  func() { logger.Debug("resolving postcode", Field{"postcode", "SW1A 1AA"}) },
			contains: []string{"DEBUG", "resolving postcode", "SW1A 1AA"},
		},
		{
			name:     "info log",
			logFunc:  func() { logger.Info("stage finished", Field{"rows", 42}) },
			contains: []string{"INFO", "stage finished", "42"},
		},
		{
			name:     "warn log",
			logFunc:  func() { logger.Warn("lookup failed", Field{"skipped", true}) },
			contains: []string{"WARN", "lookup failed", "true"},
		},
		{
			name:     "error log",
			logFunc:  func() { logger.Error("enrich failed", errors.New("boom"), Field{"stage", "load"}) },
			contains: []string{"ERROR", "enrich failed", "boom", "load"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestLogger_LogFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", nil)

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestLogger_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.WithFields(Field{"component", "orchestrator"}).Info("started")

	assert.Contains(t, buf.String(), "orchestrator")
	assert.Contains(t, buf.String(), "started")
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	ctx := ContextWithJob(context.Background(), "job-123")
	ctx = ContextWithDataset(ctx, "abc")
	ctx = ContextWithStage(ctx, "Look up charity data")

	logger.WithContext(ctx).Info("context message")

	output := buf.String()
	assert.Contains(t, output, "job-123")
	assert.Contains(t, output, "abc")
	assert.Contains(t, output, "Look up charity data")
}

func TestLogger_WithContext_Empty(t *testing.T) {
	logger, _ := newBufferLogger(t, DebugLevel)

	assert.Same(t, logger, logger.WithContext(context.Background()))
	assert.Same(t, logger, logger.WithFields())
}

func TestInitGlobalLogger_File(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	path := filepath.Join(t.TempDir(), "insights.log")
	require.NoError(t, InitGlobalLogger("debug", path))

	Info("written to file", String("dataset", "abc"))
	MustSync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), "grant-insights")
}

func TestInitGlobalLogger_BadPath(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	err := InitGlobalLogger("info", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, DebugLevel)
	SetGlobalLogger(logger)

	Debug("debug from global")
	Warn("warn from global")
	Component("cache").Error("error from global", errors.New("global error"))

	output := buf.String()
	assert.Contains(t, output, "debug from global")
	assert.Contains(t, output, "warn from global")
	assert.Contains(t, output, "global error")
	assert.Contains(t, output, "cache")
}
