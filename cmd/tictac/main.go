// tictac is a two-player tic-tac-toe game for the terminal. Players meet
// through a shared session store: a local SQLite file, an in-memory store, or
// a `tictac serve` instance reached over a websocket.
//
// Usage:
//
//	tictac play              - Host or join a game in this terminal
//	tictac serve             - Serve the session store and SSH play
//	tictac sessions          - List open sessions
//	tictac gc                - Run one stale-session sweep
//	tictac stats [player]    - Show the leaderboard or one player's record
//	tictac config            - Print the default configuration
//
// Global flags:
//
//	--config <path> - Config file (default: ~/.tictac/config.yaml)
//	--store <name>  - Store backend: sqlite, memory or remote
//	--db <path>     - SQLite database path
//	--url <url>     - Remote store websocket URL
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/tui-tictac/internal/config"
)

var (
	// Global flags
	flagConfig   string
	flagStore    string
	flagDBPath   string
	flagStoreURL string
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tictac",
	Short: "Tic-tac-toe for two players across terminals",
	Long: `tictac lets two people play tic-tac-toe from separate terminals.
One player hosts and gets a six character room code, the other joins with it.

Available commands:
  play      - Host or join a game
  serve     - Run the shared store and SSH server
  sessions  - List open sessions
  gc        - Reclaim stale sessions once
  stats     - View the leaderboard
  config    - Print the default configuration

Examples:
  tictac play --name alice
  tictac play --store remote --url ws://game.example:8080/ws
  tictac serve
  tictac stats`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Store backend: sqlite, memory, remote")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&flagStoreURL, "url", "", "Remote store websocket URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the config file and applies command line overrides.
// It exits the process on error.
func loadConfig() config.Config {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if flagStore != "" {
		cfg.Store.Backend = flagStore
	}
	if flagDBPath != "" {
		cfg.Store.Path = flagDBPath
	}
	if flagStoreURL != "" {
		cfg.Store.URL = flagStoreURL
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the process logger.
func newLogger(cfg config.Config, out *os.File) *log.Logger {
	level, err := cfg.Log.ParseLevel()
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          "tictac",
		Level:           level,
	})
}
