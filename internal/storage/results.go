package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
)

// GameResult is one finished round.
type GameResult struct {
	ID        int64
	SessionID string
	Round     int
	HostID    string
	HostName  string
	GuestID   string
	GuestName string
	Winner    string // "host", "guest" or "draw"
	EndReason string // "completed" or "abandoned"
	Moves     int
	CreatedAt time.Time
}

// PlayerStats aggregates a player's finished rounds.
// The host always plays X and the guest O.
type PlayerStats struct {
	PlayerID    string
	DisplayName string
	WinsAsX     int
	WinsAsO     int
	Losses      int
	Ties        int
	LastPlayed  time.Time
}

// Games returns the total number of recorded rounds.
func (p PlayerStats) Games() int {
	return p.WinsAsX + p.WinsAsO + p.Losses + p.Ties
}

// Wins returns wins with either symbol.
func (p PlayerStats) Wins() int {
	return p.WinsAsX + p.WinsAsO
}

// RecordOutcome implements multiplayer.OutcomeRecorder.
// Both clients of a session record their own side; the shared game row is
// written by whichever arrives first. Recording the same round twice is a no-op.
func (s *Store) RecordOutcome(ctx context.Context, o multiplayer.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO game_results
		 (session_id, round, host_id, host_name, guest_id, guest_name, winner, end_reason, moves)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.SessionID, o.Round, o.HostID, o.HostName, o.GuestID, o.GuestName,
		string(o.Winner), string(o.Reason), o.Moves,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save game result: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO player_results
		 (session_id, round, player_id, player_name, role, result)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.SessionID, o.Round, o.PlayerID, o.PlayerName, string(o.Role), string(o.Result),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save player result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit outcome: %w", err)
	}
	return nil
}

// Ensure Store implements OutcomeRecorder
var _ multiplayer.OutcomeRecorder = (*Store)(nil)

const statsColumns = `
	player_id,
	COALESCE((SELECT p2.player_name FROM player_results p2
	          WHERE p2.player_id = player_results.player_id AND p2.player_name != ''
	          ORDER BY p2.created_at DESC LIMIT 1), ''),
	SUM(CASE WHEN result = 'win' AND role = 'host' THEN 1 ELSE 0 END),
	SUM(CASE WHEN result = 'win' AND role = 'guest' THEN 1 ELSE 0 END),
	SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END),
	SUM(CASE WHEN result = 'tie' THEN 1 ELSE 0 END),
	MAX(created_at)`

func scanStats(scan func(dest ...any) error) (PlayerStats, error) {
	var (
		p          PlayerStats
		lastPlayed any
	)
	if err := scan(&p.PlayerID, &p.DisplayName, &p.WinsAsX, &p.WinsAsO, &p.Losses, &p.Ties, &lastPlayed); err != nil {
		return PlayerStats{}, err
	}
	p.LastPlayed = parseTime(lastPlayed)
	return p, nil
}

// PlayerStats returns the aggregated record of one player.
// A player with no recorded rounds gets zero stats.
func (s *Store) PlayerStats(playerID string) (*PlayerStats, error) {
	row := s.db.QueryRow(
		`SELECT `+statsColumns+`
		 FROM player_results
		 WHERE player_id = ?
		 GROUP BY player_id`,
		playerID,
	)
	p, err := scanStats(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return &PlayerStats{PlayerID: playerID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: cannot get player stats: %w", err)
	}
	return &p, nil
}

// Leaderboard returns players ordered by total wins, then by fewest losses.
func (s *Store) Leaderboard(limit int) ([]PlayerStats, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT `+statsColumns+`
		 FROM player_results
		 GROUP BY player_id
		 ORDER BY SUM(CASE WHEN result = 'win' THEN 1 ELSE 0 END) DESC,
		          SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END) ASC,
		          player_id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []PlayerStats
	for rows.Next() {
		p, err := scanStats(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// RecentGames retrieves the most recent finished rounds.
func (s *Store) RecentGames(limit int) ([]GameResult, error) {
	return s.queryGames(
		`WHERE 1 = 1`, limit,
	)
}

// PlayerHistory retrieves finished rounds a player took part in.
func (s *Store) PlayerHistory(playerID string, limit int) ([]GameResult, error) {
	return s.queryGames(
		`WHERE host_id = ? OR guest_id = ?`, limit, playerID, playerID,
	)
}

func (s *Store) queryGames(where string, limit int, args ...any) ([]GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	rows, err := s.db.Query(
		`SELECT id, session_id, round, host_id, host_name, guest_id, guest_name,
		        winner, end_reason, moves, created_at
		 FROM game_results
		 `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query game results: %w", err)
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var (
			r         GameResult
			createdAt any
		)
		if err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.Round,
			&r.HostID,
			&r.HostName,
			&r.GuestID,
			&r.GuestName,
			&r.Winner,
			&r.EndReason,
			&r.Moves,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return results, nil
}

// WinnerName resolves the display name of the winning side.
func (r GameResult) WinnerName() string {
	switch docstore.Winner(r.Winner) {
	case docstore.WinnerHost:
		return r.HostName
	case docstore.WinnerGuest:
		return r.GuestName
	}
	return ""
}
