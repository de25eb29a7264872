package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
	"github.com/vovakirdan/tui-tictac/internal/storage"
)

var flagTop int

var statsCmd = &cobra.Command{
	Use:   "stats [player-id]",
	Short: "Show the leaderboard or one player's record",
	Long: `Without arguments, show the leaderboard and the most recent games.
With a player id, show that player's record and game history.

Statistics live in the SQLite database, so this reads --db even when
sessions are kept elsewhere.

Examples:
  tictac stats
  tictac stats --top 20
  tictac stats 6f1c2d3e-...`,
	Args: cobra.MaximumNArgs(1),
	Run:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&flagTop, "top", 10, "Number of players or games to show")
}

func runStats(_ *cobra.Command, args []string) {
	cfg := loadConfig()

	db, err := storage.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening statistics database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if len(args) == 1 {
		if err := printPlayer(db, args[0]); err != nil {
			db.Close()
			fmt.Fprintf(os.Stderr, "Error retrieving stats: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := printLeaderboard(db); err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "Error retrieving stats: %v\n", err)
		os.Exit(1)
	}
}

func printLeaderboard(db *storage.Store) error {
	leaders, err := db.Leaderboard(flagTop)
	if err != nil {
		return err
	}

	fmt.Println("Leaderboard")
	fmt.Println()

	if len(leaders) == 0 {
		fmt.Println("No games recorded yet.")
		fmt.Println()
		fmt.Println("Run 'tictac play' and finish a round to get on the board!")
		return nil
	}

	fmt.Printf("  %-4s  %-18s  %-6s  %-6s  %-6s  %-4s  %s\n", "Rank", "Player", "Wins X", "Wins O", "Losses", "Ties", "Games")
	fmt.Printf("  %-4s  %-18s  %-6s  %-6s  %-6s  %-4s  %s\n", "----", "------", "------", "------", "------", "----", "-----")
	for i, p := range leaders {
		fmt.Printf("  %-4d  %-18s  %-6d  %-6d  %-6d  %-4d  %d\n",
			i+1, p.DisplayName, p.WinsAsX, p.WinsAsO, p.Losses, p.Ties, p.Games())
	}

	games, err := db.RecentGames(flagTop)
	if err != nil {
		return err
	}
	if len(games) > 0 {
		fmt.Println()
		fmt.Println("Recent games")
		fmt.Println()
		printGames(games)
	}
	return nil
}

func printPlayer(db *storage.Store, playerID string) error {
	p, err := db.PlayerStats(playerID)
	if err != nil {
		return err
	}
	if p == nil || p.Games() == 0 {
		fmt.Printf("No games recorded for %s.\n", playerID)
		return nil
	}

	fmt.Printf("%s (%s)\n", p.DisplayName, p.PlayerID)
	fmt.Println()
	fmt.Printf("  Wins:   %d (X %d, O %d)\n", p.Wins(), p.WinsAsX, p.WinsAsO)
	fmt.Printf("  Losses: %d\n", p.Losses)
	fmt.Printf("  Ties:   %d\n", p.Ties)
	fmt.Printf("  Last played: %s\n", p.LastPlayed.Local().Format("2006-01-02 15:04"))

	games, err := db.PlayerHistory(playerID, flagTop)
	if err != nil {
		return err
	}
	if len(games) > 0 {
		fmt.Println()
		printGames(games)
	}
	return nil
}

func printGames(games []storage.GameResult) {
	fmt.Printf("  %-16s  %-6s  %-5s  %-16s  %-16s  %s\n", "Date", "Room", "Round", "Host (X)", "Guest (O)", "Result")
	for _, g := range games {
		result := "draw"
		if name := g.WinnerName(); name != "" {
			result = name + " won"
		}
		if g.EndReason == string(multiplayer.EndAbandoned) {
			result += " (abandoned)"
		}
		fmt.Printf("  %-16s  %-6s  %-5d  %-16s  %-16s  %s\n",
			g.CreatedAt.Local().Format("2006-01-02 15:04"), g.SessionID, g.Round,
			orDash(g.HostName), orDash(g.GuestName), result)
	}
}
