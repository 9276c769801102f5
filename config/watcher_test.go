package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, level string) {
	t.Helper()
	content := "logging:\n  level: " + level + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func waitForLevel(t *testing.T, level *slog.LevelVar, want slog.Level) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if level.Level() == want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("log level never became %v (still %v)", want, level.Level())
}

func TestWatcherAppliesLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentflow.yaml")
	writeConfig(t, configPath, "info")

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(configPath, level, logger)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeConfig(t, configPath, "debug")
	waitForLevel(t, level, slog.LevelDebug)

	writeConfig(t, configPath, "error")
	waitForLevel(t, level, slog.LevelError)
}

func TestWatcherSkipsInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentflow.yaml")
	writeConfig(t, configPath, "info")

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(configPath, level, logger)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Garbage must not change anything.
	if err := os.WriteFile(configPath, []byte("logging: [broken"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	time.Sleep(3 * watchDebounce)
	if level.Level() != slog.LevelInfo {
		t.Fatalf("invalid config changed the level to %v", level.Level())
	}

	// A later valid write still lands.
	writeConfig(t, configPath, "warn")
	waitForLevel(t, level, slog.LevelWarn)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "agentflow.yaml")
	writeConfig(t, configPath, "info")

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w, err := NewWatcher(configPath, level, logger)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// A change to a different file in the same directory is not a reload:
	// the level var only ever reflects the watched file.
	writeConfig(t, filepath.Join(tmpDir, "other.yaml"), "error")
	time.Sleep(3 * watchDebounce)
	if level.Level() != slog.LevelInfo {
		t.Fatalf("sibling file changed the level to %v", level.Level())
	}
}
