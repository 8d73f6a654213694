package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := FromViper(v)

	if cfg.Transport.Mode != "simulated" {
		t.Errorf("expected simulated transport by default, got %q", cfg.Transport.Mode)
	}
	if cfg.Transport.PollInterval != 2*time.Second {
		t.Errorf("expected 2s poll interval, got %v", cfg.Transport.PollInterval)
	}
	if cfg.Recommend.Decay != 8 || cfg.Recommend.DefaultK != 5 {
		t.Errorf("unexpected recommend defaults: %+v", cfg.Recommend)
	}
	if cfg.Queue.Backend != "memory" {
		t.Errorf("expected memory queue by default, got %q", cfg.Queue.Backend)
	}
	if cfg.R2.Configured() {
		t.Error("expected R2 to be unconfigured by default")
	}
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("transport.mode", "http")
	v.Set("transport.poll_interval", "500ms")
	v.Set("recommend.default_k", 4)

	cfg := FromViper(v)

	if cfg.Transport.Mode != "http" {
		t.Errorf("expected http mode, got %q", cfg.Transport.Mode)
	}
	if cfg.Transport.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Transport.PollInterval)
	}
	if cfg.Recommend.DefaultK != 4 {
		t.Errorf("expected k=4, got %d", cfg.Recommend.DefaultK)
	}
}

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}

	t.Setenv("SCORE_TEST_SECRET", "")
	t.Setenv("SCORE_TEST_SECRET_FILE", path)

	readSecret("SCORE_TEST_SECRET")

	if got := os.Getenv("SCORE_TEST_SECRET"); got != "s3cret" {
		t.Errorf("expected secret from file, got %q", got)
	}
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "score.yaml")
	content := "transport:\n  mode: http\n  base_url: http://api.example.com\nrecommend:\n  decay: 6.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Transport.Mode != "http" || cfg.Transport.BaseURL != "http://api.example.com" {
		t.Errorf("unexpected transport config %+v", cfg.Transport)
	}
	if cfg.Recommend.Decay != 6.5 {
		t.Errorf("expected decay 6.5, got %v", cfg.Recommend.Decay)
	}
	if cfg.Recommend.DefaultK != 5 {
		t.Errorf("expected default k to survive, got %d", cfg.Recommend.DefaultK)
	}
}

func TestLoadFrom_MissingExplicitFile(t *testing.T) {
	if _, err := LoadFrom(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("SCORE_TRANSPORT_MODE", "http")
	t.Setenv("SCORE_POLL_INTERVAL", "250ms")

	cfg, err := LoadFrom(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Transport.Mode != "http" {
		t.Errorf("expected env mode, got %q", cfg.Transport.Mode)
	}
	if cfg.Transport.PollInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Transport.PollInterval)
	}
}
