package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TICTAC_"

// Load loads the configuration.
// Search order: customPath -> ~/.tictac/config.yaml -> ./configs/tictac.yaml -> embedded default.
// Values from a .env file in the working directory and TICTAC_* variables
// are applied on top of the file.
func Load(customPath string) (Config, error) {
	cfg := Default()

	switch {
	case customPath != "":
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
	default:
		if !loadFirst(&cfg, userConfigPath("config.yaml"), filepath.Join("configs", "tictac.yaml")) {
			if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
				cfg = Default() // Fallback to hardcoded if embed fails
			}
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// loadFirst decodes the first readable, well-formed file over cfg.
func loadFirst(cfg *Config, paths ...string) bool {
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		next := *cfg
		if err := yaml.Unmarshal(data, &next); err != nil {
			continue
		}
		*cfg = next
		return true
	}
	return false
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tictac", filename)
}

// LoadDotEnv exports the variables of a dotenv file that are not already
// set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// ApplyEnv overrides cfg with TICTAC_* environment variables.
func ApplyEnv(cfg *Config) error {
	strs := map[string]*string{
		"STORE_BACKEND": &cfg.Store.Backend,
		"DB_PATH":       &cfg.Store.Path,
		"STORE_URL":     &cfg.Store.URL,
		"HTTP_ADDR":     &cfg.Server.HTTPAddr,
		"SSH_ADDR":      &cfg.Server.SSHAddr,
		"HOST_KEY":      &cfg.Server.HostKey,
		"LOG_LEVEL":     &cfg.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"IDLE_TIMEOUT":         &cfg.Server.IdleTimeout,
		"HEARTBEAT_INTERVAL":   &cfg.Session.HeartbeatInterval,
		"DISCONNECT_THRESHOLD": &cfg.Session.DisconnectThreshold,
		"STALE_AFTER":          &cfg.Session.StaleAfter,
		"GC_PERIOD":            &cfg.Session.GCPeriod,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"GC_BATCH_SIZE": &cfg.Session.GCBatchSize,
		"CODE_ATTEMPTS": &cfg.Session.CodeAttempts,
		"WRITE_RETRIES": &cfg.Session.WriteRetries,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
