package logging

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/minyu3108/scheduling/errors"
)

func TestLogger(t *testing.T) {
	// Test different environments
	configs := []Config{
		{Level: "debug", Format: "text", Environment: EnvDevelopment, AddSource: true},
		{Level: "info", Format: "json", Environment: EnvProduction, AddSource: false},
	}

	for _, config := range configs {
		t.Run("Environment_"+config.Environment, func(t *testing.T) {
			logger := NewLogger(config)

			// Test basic logging
			logger.Debug("Debug message", slog.String("key", "value"))
			logger.Info("Info message", slog.Int("count", 42))
			logger.Warn("Warning message", slog.Bool("enabled", true))

			// Test error logging
			testErr := errors.New(errors.OpList, fmt.Errorf("storage error"))
			logger.LogError(context.Background(), testErr, "Operation failed")

			// Test child loggers
			childLogger := logger.WithComponent(Component("test"))
			childLogger.Info("Child logger message")

			sessionLogger := logger.WithSession("sess-1")
			sessionLogger.Info("Session logger message")

			// Test operation logging
			err := logger.LogOperation(
				context.Background(),
				Operation("test_op"),
				Component("test_component"),
				func() error {
					return nil
				},
			)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLogOperationPropagatesError(t *testing.T) {
	logger := NewLogger(Config{Level: "error", Format: "text", Environment: EnvTest})

	want := fmt.Errorf("boom")
	got := logger.LogOperation(context.Background(), Operation("failing_op"), Component("test"), func() error {
		return want
	})
	if got != want {
		t.Errorf("LogOperation returned %v, want %v", got, want)
	}
}

func TestSyncErrorValuer(t *testing.T) {
	syncErr := &errors.SyncError{
		Op:        errors.OpList,
		Component: "test",
		Code:      errors.ErrCodeStorageFailure,
		Kind:      errors.KindInternal,
		Err:       fmt.Errorf("underlying error"),
		Retryable: true,
		Metadata: map[string]interface{}{
			"retry_count": 3,
			"timeout":     "30s",
		},
	}

	valuer := SyncErrorValuer{SyncError: syncErr}
	logValue := valuer.LogValue()

	// Verify the log value is properly structured
	if logValue.Kind() != slog.KindGroup {
		t.Errorf("Expected group value, got %v", logValue.Kind())
	}
}

func TestGetConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("ENVIRONMENT", "test")

	config := GetConfigFromEnv()
	if config.Level != "warn" {
		t.Errorf("Level = %q, want warn", config.Level)
	}
	if config.Format != "text" {
		t.Errorf("Format = %q, want text", config.Format)
	}
	if config.AddSource {
		t.Error("AddSource should be disabled in test environment")
	}
}
