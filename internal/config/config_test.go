package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kendricksin/feed-scanner/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if len(cfg.ScheduleTimes) != 2 {
		t.Errorf("schedule times = %v", cfg.ScheduleTimes)
	}
	if _, ok := cfg.Departments["0307"]; !ok {
		t.Error("default departments must include 0307")
	}
	if cfg.FetchTimeout() != 30*time.Second {
		t.Errorf("fetch timeout = %v", cfg.FetchTimeout())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9090"
logLevel: debug
fetchTimeoutSeconds: 10
scheduleTimes: ["06:00"]
departments:
  "0307": "Revenue Department"
  "0703": "Department of Fisheries"
analyzer:
  endpoint: http://localhost:1234/v1/chat/completions
  model: test-model
  apiKey: secret
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("fetch timeout = %v", cfg.FetchTimeout())
	}
	if len(cfg.Departments) != 2 {
		t.Errorf("departments = %v", cfg.Departments)
	}
	if !cfg.Analyzer.Enabled() {
		t.Error("analyzer config should be complete")
	}
	// Defaults not mentioned in the file survive.
	if cfg.FeedURL == "" {
		t.Error("feed url default lost")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("FEED_URL", "http://example.com/feed")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log level = %q, env must win", cfg.LogLevel)
	}
	if cfg.FeedURL != "http://example.com/feed" {
		t.Errorf("feed url = %q", cfg.FeedURL)
	}
}

func TestLoadRejectsBadScheduleTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`scheduleTimes: ["26:00"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for invalid schedule time")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
