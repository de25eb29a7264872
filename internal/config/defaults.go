package config

import (
	_ "embed"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

//go:embed defaults/tictac.yaml
var defaultYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	engine := multiplayer.DefaultCoordinatorConfig()
	return Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "~/.tictac/tictac.db",
			URL:     "ws://localhost:8080/ws",
		},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			SSHAddr:     ":23234",
			IdleTimeout: 30 * time.Minute,
		},
		Session: SessionConfig{
			HeartbeatInterval:   engine.HeartbeatInterval,
			DisconnectThreshold: engine.DisconnectThreshold,
			StaleAfter:          engine.StaleAfter,
			GCPeriod:            engine.GCPeriod,
			GCBatchSize:         engine.GCBatchSize,
			CodeAttempts:        engine.CodeAttempts,
			WriteRetries:        engine.WriteRetries,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultYAML returns the embedded default file.
func DefaultYAML() []byte {
	return defaultYAML
}
