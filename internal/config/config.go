// Package config provides YAML-based configuration loading for the tictac
// server and clients.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
)

// Config contains all tictac configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig selects where sessions live.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"` // sqlite database file
	URL     string `yaml:"url"`  // remote store websocket endpoint
}

// ServerConfig defines the listeners of `tictac serve`.
type ServerConfig struct {
	HTTPAddr    string        `yaml:"http_addr"`
	SSHAddr     string        `yaml:"ssh_addr"`
	HostKey     string        `yaml:"host_key"` // auto-generated when empty
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// SessionConfig tunes the session engine.
type SessionConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	DisconnectThreshold time.Duration `yaml:"disconnect_threshold"`
	StaleAfter          time.Duration `yaml:"stale_after"`
	GCPeriod            time.Duration `yaml:"gc_period"`
	GCBatchSize         int           `yaml:"gc_batch_size"`
	CodeAttempts        int           `yaml:"code_attempts"`
	WriteRetries        int           `yaml:"write_retries"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for the sqlite backend")
		}
	case BackendRemote:
		if c.Store.URL == "" {
			return errors.New("config: store.url is required for the remote backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"session.heartbeat_interval", c.Session.HeartbeatInterval},
		{"session.disconnect_threshold", c.Session.DisconnectThreshold},
		{"session.stale_after", c.Session.StaleAfter},
		{"session.gc_period", c.Session.GCPeriod},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", d.name, d.d)
		}
	}
	if c.Session.DisconnectThreshold <= c.Session.HeartbeatInterval {
		return fmt.Errorf("config: session.disconnect_threshold (%s) must exceed heartbeat_interval (%s)",
			c.Session.DisconnectThreshold, c.Session.HeartbeatInterval)
	}
	if c.Session.GCBatchSize < 1 || c.Session.CodeAttempts < 1 || c.Session.WriteRetries < 1 {
		return errors.New("config: session batch size, code attempts and write retries must be at least 1")
	}

	if _, err := c.Log.ParseLevel(); err != nil {
		return err
	}
	return nil
}

// ParseLevel returns the configured log level.
func (l LogConfig) ParseLevel() (log.Level, error) {
	if l.Level == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(l.Level)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// CoordinatorConfig converts the session section for the engine.
func (s SessionConfig) CoordinatorConfig() multiplayer.CoordinatorConfig {
	return multiplayer.CoordinatorConfig{
		HeartbeatInterval:   s.HeartbeatInterval,
		DisconnectThreshold: s.DisconnectThreshold,
		StaleAfter:          s.StaleAfter,
		GCBatchSize:         s.GCBatchSize,
		GCPeriod:            s.GCPeriod,
		CodeAttempts:        s.CodeAttempts,
		WriteRetries:        s.WriteRetries,
	}
}
