package app

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "warn"})
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be suppressed at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be enabled at warn level")
	}
}

func TestLoggerDefaultsToInfo(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "not-a-level"})
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be suppressed by default")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be enabled by default")
	}
}
