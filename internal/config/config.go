// Package config provides configuration management for the exporter.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL       = errors.New("api.base_url is required")
	ErrInvalidTimeout       = errors.New("api.timeout_sec must be at least 1")
	ErrInvalidCursorField   = errors.New("api.cursor_field must be one of: published_after, published_before, inserted_before")
	ErrInvalidBatchSize     = errors.New("fetch.batch_size must be between 1 and 100")
	ErrInvalidMaxRequests   = errors.New("fetch.max_requests must be at least 1")
	ErrMissingStatePath     = errors.New("auth.state_path is required")
	ErrMissingCachePath     = errors.New("cache.path is required")
	ErrInvalidStaleAfter    = errors.New("cache.stale_after_min must be at least 1")
	ErrInvalidOutputFormat  = errors.New("output.format must be 'json', 'grouped', or 'list'")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrNoMarkReadCandidates = errors.New("mark_read.candidates must contain at least one entry")
)

// APIMaxLimit is the server's documented maximum page size.
const APIMaxLimit = 100

// Cursor field choices. The upstream pagination contract shifted between
// deployments, so the field is a configuration point rather than a constant.
const (
	CursorPublishedAfter  = "published_after"
	CursorPublishedBefore = "published_before"
	CursorInsertedBefore  = "inserted_before"
)

// Config represents the complete exporter configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
	MarkRead MarkReadConfig `yaml:"mark_read"`
}

// APIConfig contains upstream API settings.
type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CursorField string `yaml:"cursor_field"`
}

// FetchConfig contains pagination settings.
type FetchConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxRequests int `yaml:"max_requests"`
}

// AuthConfig contains credential resolution settings.
type AuthConfig struct {
	StatePath string `yaml:"state_path"`
	CookieEnv string `yaml:"cookie_env"`
}

// CacheConfig contains snapshot cache settings.
type CacheConfig struct {
	Path          string `yaml:"path"`
	StaleAfterMin int    `yaml:"stale_after_min"`
}

// OutputConfig contains export output settings.
type OutputConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MarkReadConfig contains mark-as-read endpoint probing settings.
type MarkReadConfig struct {
	Candidates []CandidateConfig `yaml:"candidates"`
}

// CandidateConfig describes one mark-as-read endpoint guess.
type CandidateConfig struct {
	BaseURL string `yaml:"base_url"`
	Path    string `yaml:"path"`
	Legacy  bool   `yaml:"legacy"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "https://api.folo.is",
			TimeoutSec:  30,
			CursorField: CursorPublishedAfter,
		},
		Fetch: FetchConfig{
			BatchSize:   100,
			MaxRequests: 50,
		},
		Auth: AuthConfig{
			StatePath: "~/.folo-exporter/storage-state.json",
			CookieEnv: "FOLO_COOKIE",
		},
		Cache: CacheConfig{
			Path:          "~/.folo-exporter/cache.db",
			StaleAfterMin: 30,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		MarkRead: MarkReadConfig{
			Candidates: []CandidateConfig{
				{BaseURL: "https://api.folo.is", Path: "/reads"},
				{BaseURL: "https://api.follow.is", Path: "/reads"},
				{BaseURL: "https://api.folo.is", Path: "/reads/markAsRead", Legacy: true},
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file, filling unset fields
// with defaults. A missing file yields the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}

	if c.API.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	switch c.API.CursorField {
	case CursorPublishedAfter, CursorPublishedBefore, CursorInsertedBefore:
	default:
		return ErrInvalidCursorField
	}

	if c.Fetch.BatchSize < 1 || c.Fetch.BatchSize > APIMaxLimit {
		return ErrInvalidBatchSize
	}

	if c.Fetch.MaxRequests < 1 {
		return ErrInvalidMaxRequests
	}

	if c.Auth.StatePath == "" {
		return ErrMissingStatePath
	}

	if c.Cache.Path == "" {
		return ErrMissingCachePath
	}

	if c.Cache.StaleAfterMin < 1 {
		return ErrInvalidStaleAfter
	}

	switch c.Output.Format {
	case "json", "grouped", "list":
	default:
		return ErrInvalidOutputFormat
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if len(c.MarkRead.Candidates) == 0 {
		return ErrNoMarkReadCandidates
	}

	return nil
}

// StatePath returns auth.state_path with a leading "~/" expanded.
func (c *Config) StatePath() string {
	return ExpandHome(c.Auth.StatePath)
}

// CachePath returns cache.path with a leading "~/" expanded.
func (c *Config) CachePath() string {
	return ExpandHome(c.Cache.Path)
}

// ExpandHome resolves a leading "~/" against the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
