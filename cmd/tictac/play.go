package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
	"github.com/vovakirdan/tui-tictac/internal/platform/tui"
)

var (
	flagName    string
	flagLogFile string
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Host or join a game",
	Long: `Open the game menu in this terminal. Host a game to get a room code,
or join one with the code your opponent gives you.

Controls:
  1-9          - Place a mark on that cell
  Arrows/HJKL  - Move the cursor
  Enter/Space  - Place a mark at the cursor
  R            - Ask for a rematch after a round
  Esc/B        - Leave the game
  Q/Ctrl+C     - Quit

Both players must use the same store. On one machine the default SQLite
database is enough; across machines point both at a 'tictac serve' instance.

Examples:
  tictac play --name alice
  tictac play --store remote --url ws://game.example:8080/ws`,
	Args: cobra.NoArgs,
	Run:  runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagName, "name", "", "Display name (default: $USER)")
	playCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write engine logs to this file")
}

func runPlay(_ *cobra.Command, _ []string) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: play needs an interactive terminal")
		os.Exit(1)
	}

	cfg := loadConfig()

	// The UI owns the terminal, so logs go to a file or nowhere.
	logger := log.New(io.Discard)
	if flagLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(flagLogFile), 0o755); err == nil {
			if f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				defer f.Close()
				logger = newLogger(cfg, f)
			}
		}
	}

	be, err := openBackend(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer be.Close()

	width, height := 80, 24 // Defaults
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width = w
		height = h
	}

	name := flagName
	if name == "" {
		name = os.Getenv("USER")
	}

	coord := newCoordinator(be, cfg, logger)
	client := multiplayer.NewClient(coord, multiplayer.NewPlayer(name), be.recorder, logger.WithPrefix("client"))
	defer client.Close()

	if err := tui.Run(client, be.stats, width, height); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
