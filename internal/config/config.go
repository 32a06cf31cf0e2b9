// Package config loads scanner settings from defaults, an optional YAML
// file, and environment overrides, in that order of precedence (env wins).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kendricksin/feed-scanner/internal/analyzer"
)

const configPathEnv = "FEED_SCANNER_CONFIG"

// Config holds all scanner settings.
type Config struct {
	Listen          string            `yaml:"listen"`
	DataDir         string            `yaml:"dataDir"`
	DatabasePath    string            `yaml:"databasePath"`
	LogLevel        string            `yaml:"logLevel"`
	AuthPassword    string            `yaml:"authPassword"`
	FeedURL         string            `yaml:"feedUrl"`
	InfoURL         string            `yaml:"infoUrl"`
	DownloadURL     string            `yaml:"downloadUrl"`
	FetchTimeoutSec int               `yaml:"fetchTimeoutSeconds"`
	MaxFetchBytes   int64             `yaml:"maxFetchBytes"`
	AllowAnyHost    bool              `yaml:"allowAnyHost"`
	ScheduleTimes   []string          `yaml:"scheduleTimes"`
	Departments     map[string]string `yaml:"departments"` // id to display name
	Analyzer        analyzer.Config   `yaml:"analyzer"`
}

func defaultConfig() Config {
	return Config{
		Listen:          ":8080",
		DataDir:         "data",
		DatabasePath:    "data/feedscanner.db",
		LogLevel:        "info",
		FeedURL:         "http://process3.gprocurement.go.th/EPROCRssFeedWeb/egpannouncerss.xml",
		InfoURL:         "https://process5.gprocurement.go.th/egp-approval-service/apv-common/infoProcureDocAnnounZipTemp",
		DownloadURL:     "https://process5.gprocurement.go.th/egp-upload-service/v1/downloadFileTest",
		FetchTimeoutSec: 30,
		MaxFetchBytes:   50 * 1024 * 1024,
		ScheduleTimes:   []string{"08:30", "17:30"},
		Departments: map[string]string{
			"0307": "Revenue Department",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// FEED_SCANNER_CONFIG (or path if non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FetchTimeout returns the outbound HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// DepartmentIDs returns the configured department ids.
func (c Config) DepartmentIDs() []string {
	ids := make([]string, 0, len(c.Departments))
	for id := range c.Departments {
		ids = append(ids, id)
	}
	return ids
}

func (c *Config) applyEnvOverrides() {
	c.Listen = env("LISTEN_ADDR", c.Listen)
	c.DataDir = env("DATA_DIR", c.DataDir)
	c.DatabasePath = env("DATABASE_PATH", c.DatabasePath)
	c.LogLevel = env("LOG_LEVEL", c.LogLevel)
	c.AuthPassword = env("AUTH_PASSWORD", c.AuthPassword)
	c.FeedURL = env("FEED_URL", c.FeedURL)
	c.InfoURL = env("INFO_URL", c.InfoURL)
	c.DownloadURL = env("DOWNLOAD_URL", c.DownloadURL)
	c.Analyzer.Endpoint = env("ANALYZER_ENDPOINT", c.Analyzer.Endpoint)
	c.Analyzer.Model = env("ANALYZER_MODEL", c.Analyzer.Model)
	c.Analyzer.APIKey = env("ANALYZER_API_KEY", c.Analyzer.APIKey)
}

func (c Config) validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("config: feedUrl must be set")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: databasePath must be set")
	}
	if len(c.Departments) == 0 {
		return fmt.Errorf("config: at least one department must be configured")
	}
	for _, at := range c.ScheduleTimes {
		if _, err := time.Parse("15:04", at); err != nil {
			return fmt.Errorf("config: bad schedule time %q (want HH:MM)", at)
		}
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
