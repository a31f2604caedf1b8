package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// validConfigYAML is a minimal valid configuration.
const validConfigYAML = `
api:
  base_url: "https://api.folo.is"
  timeout_sec: 30
  cursor_field: "inserted_before"
fetch:
  batch_size: 50
  max_requests: 10
auth:
  state_path: "./storage-state.json"
cache:
  path: "./cache.db"
  stale_after_min: 30
output:
  format: "grouped"
logging:
  level: "debug"
`

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.CursorField != CursorInsertedBefore {
		t.Errorf("CursorField = %s, want inserted_before", cfg.API.CursorField)
	}

	if cfg.Fetch.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.Fetch.BatchSize)
	}

	if cfg.Output.Format != "grouped" {
		t.Errorf("Format = %s, want grouped", cfg.Output.Format)
	}

	// Fields not present in the file keep their defaults.
	if cfg.Auth.CookieEnv != "FOLO_COOKIE" {
		t.Errorf("CookieEnv = %s, want FOLO_COOKIE", cfg.Auth.CookieEnv)
	}

	if len(cfg.MarkRead.Candidates) != 3 {
		t.Errorf("Candidates = %d, want 3 defaults", len(cfg.MarkRead.Candidates))
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.API.BaseURL != "https://api.folo.is" {
		t.Errorf("BaseURL = %s, want default", cfg.API.BaseURL)
	}

	if cfg.Fetch.MaxRequests != 50 {
		t.Errorf("MaxRequests = %d, want 50", cfg.Fetch.MaxRequests)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "api: [broken")

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("LoadConfig should fail on malformed YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, ErrMissingBaseURL},
		{"bad cursor field", func(c *Config) { c.API.CursorField = "updated_after" }, ErrInvalidCursorField},
		{"zero batch size", func(c *Config) { c.Fetch.BatchSize = 0 }, ErrInvalidBatchSize},
		{"batch size over server max", func(c *Config) { c.Fetch.BatchSize = 101 }, ErrInvalidBatchSize},
		{"zero max requests", func(c *Config) { c.Fetch.MaxRequests = 0 }, ErrInvalidMaxRequests},
		{"missing state path", func(c *Config) { c.Auth.StatePath = "" }, ErrMissingStatePath},
		{"missing cache path", func(c *Config) { c.Cache.Path = "" }, ErrMissingCachePath},
		{"bad output format", func(c *Config) { c.Output.Format = "xml" }, ErrInvalidOutputFormat},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"no candidates", func(c *Config) { c.MarkRead.Candidates = nil }, ErrNoMarkReadCandidates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig should validate: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	got := ExpandHome("~/.folo-exporter/cache.db")
	want := filepath.Join(home, ".folo-exporter", "cache.db")

	if got != want {
		t.Errorf("ExpandHome = %s, want %s", got, want)
	}

	if got := ExpandHome("/absolute/path"); got != "/absolute/path" {
		t.Errorf("ExpandHome should leave absolute paths alone, got %s", got)
	}
}
