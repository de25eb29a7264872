package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestEmbeddedDefaultsMatchDefault(t *testing.T) {
	var fromYAML Config
	if err := yaml.Unmarshal(DefaultYAML(), &fromYAML); err != nil {
		t.Fatalf("embedded default does not parse: %v", err)
	}
	if fromYAML != Default() {
		t.Errorf("embedded default = %+v, want %+v", fromYAML, Default())
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Session.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 10s", cfg.Session.HeartbeatInterval)
	}
	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want sqlite", cfg.Store.Backend)
	}
}

func TestLoadUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".tictac")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data := "store:\n  backend: memory\nsession:\n  stale_after: 2h\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Session.StaleAfter != 2*time.Hour {
		t.Errorf("StaleAfter = %s, want 2h", cfg.Session.StaleAfter)
	}
	// Fields missing from the file keep their defaults.
	if cfg.Session.GCBatchSize != 100 {
		t.Errorf("GCBatchSize = %d, want 100", cfg.Session.GCBatchSize)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "custom.yaml")
	data := "store:\n  backend: remote\n  url: ws://example:9000/ws\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) error: %v", path, err)
	}
	if cfg.Store.URL != "ws://example:9000/ws" {
		t.Errorf("URL = %q", cfg.Store.URL)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing custom config")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TICTAC_STORE_BACKEND", "memory")
	t.Setenv("TICTAC_HEARTBEAT_INTERVAL", "2s")
	t.Setenv("TICTAC_GC_BATCH_SIZE", "7")
	t.Setenv("TICTAC_LOG_LEVEL", " warn ")

	cfg := Default()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
	if cfg.Session.HeartbeatInterval != 2*time.Second {
		t.Errorf("HeartbeatInterval = %s", cfg.Session.HeartbeatInterval)
	}
	if cfg.Session.GCBatchSize != 7 {
		t.Errorf("GCBatchSize = %d", cfg.Session.GCBatchSize)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}

	t.Setenv("TICTAC_STALE_AFTER", "soon")
	if err := ApplyEnv(&cfg); err == nil || !strings.Contains(err.Error(), "TICTAC_STALE_AFTER") {
		t.Errorf("ApplyEnv() error = %v, want mention of TICTAC_STALE_AFTER", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TICTAC_SSH_ADDR=:2222\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TICTAC_SSH_ADDR", "")
	os.Unsetenv("TICTAC_SSH_ADDR")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	cfg := Default()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.SSHAddr != ":2222" {
		t.Errorf("SSHAddr = %q, want :2222", cfg.Server.SSHAddr)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "none.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Store.Path = "" }},
		{"remote without url", func(c *Config) { c.Store.Backend = BackendRemote; c.Store.URL = "" }},
		{"zero heartbeat", func(c *Config) { c.Session.HeartbeatInterval = 0 }},
		{"negative stale", func(c *Config) { c.Session.StaleAfter = -time.Second }},
		{"threshold below heartbeat", func(c *Config) { c.Session.DisconnectThreshold = c.Session.HeartbeatInterval }},
		{"zero batch", func(c *Config) { c.Session.GCBatchSize = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCoordinatorConfig(t *testing.T) {
	cfg := Default()
	cfg.Session.StaleAfter = 3 * time.Hour
	cc := cfg.Session.CoordinatorConfig()
	if cc.StaleAfter != 3*time.Hour {
		t.Errorf("StaleAfter = %s", cc.StaleAfter)
	}
	if cc.CodeAttempts != 5 || cc.WriteRetries != 3 {
		t.Errorf("CodeAttempts/WriteRetries = %d/%d", cc.CodeAttempts, cc.WriteRetries)
	}
}
