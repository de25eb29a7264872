package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim stale sessions once",
	Long: `Run one garbage collection sweep. Waiting sessions idle longer than
session.stale_after are deleted; idle active sessions are marked abandoned.
'tictac serve' runs the same sweep every session.gc_period.

Examples:
  tictac gc
  tictac gc --store remote --url ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	Run:  runGC,
}

func runGC(_ *cobra.Command, _ []string) {
	cfg := loadConfig()
	logger := newLogger(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.GCPeriod)
	defer cancel()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer be.Close()

	coord := newCoordinator(be, cfg, logger)
	report, err := coord.CollectGarbage(ctx)
	if err != nil {
		be.Close()
		fmt.Fprintf(os.Stderr, "Error collecting sessions: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scanned %d, deleted %d, abandoned %d, skipped %d\n",
		report.Scanned, report.Deleted, report.Abandoned, report.Skipped)
}
