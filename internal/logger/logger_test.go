package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scoreapp/score/internal/config"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "score.log")

	log, err := New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log output in file")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}
