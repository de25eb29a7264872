package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

var (
	flagAll   bool
	flagLimit int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions in the store",
	Long: `List waiting and active sessions, oldest activity first.

Examples:
  tictac sessions
  tictac sessions --all
  tictac sessions --store remote --url ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	Run:  runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVar(&flagAll, "all", false, "Include completed and abandoned sessions")
	sessionsCmd.Flags().IntVar(&flagLimit, "limit", 50, "Maximum sessions to list")
}

func runSessions(_ *cobra.Command, _ []string) {
	cfg := loadConfig()
	logger := newLogger(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer be.Close()

	filter := docstore.Filter{Status: []docstore.Status{docstore.StatusWaiting, docstore.StatusActive}}
	if flagAll {
		filter = docstore.Filter{}
	}

	sessions, err := be.store.Query(ctx, filter, flagLimit)
	if err != nil {
		be.Close()
		fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
		os.Exit(1)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}

	fmt.Printf("  %-6s  %-9s  %-5s  %-16s  %-16s  %s\n", "Code", "Status", "Round", "Host (X)", "Guest (O)", "Last activity")
	fmt.Printf("  %-6s  %-9s  %-5s  %-16s  %-16s  %s\n", "----", "------", "-----", "--------", "---------", "-------------")
	for _, s := range sessions {
		fmt.Printf("  %-6s  %-9s  %-5d  %-16s  %-16s  %s\n",
			s.ID, s.Status, s.Round, orDash(s.HostName), orDash(s.GuestName), ago(s.LastActivityAt))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ago formats t relative to now, rounded to the second.
func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
