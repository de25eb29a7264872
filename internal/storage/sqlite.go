// Package storage provides SQLite-based persistence for sessions, game
// history and player statistics.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Store manages the SQLite database connection. It implements docstore.Store
// for session documents and multiplayer.OutcomeRecorder for results.
type Store struct {
	db *sql.DB

	// mu serializes session writes so the broker sees them in commit order.
	mu     sync.Mutex
	broker *docstore.Broker
	now    func() time.Time

	watchers map[string]*watcher
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}
	// One connection keeps transactions and plain reads from contending for
	// the SQLite write lock inside this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{
		db:     db,
		broker:   docstore.NewBroker(docstore.DefaultBuffer),
		now:      func() time.Time { return time.Now().UTC() },
		watchers: make(map[string]*watcher),
		stop:     make(chan struct{}),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			last_activity_at INTEGER NOT NULL,
			version INTEGER NOT NULL,
			doc TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_status_activity ON sessions(status, last_activity_at);

		CREATE TABLE IF NOT EXISTS game_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			host_id TEXT NOT NULL,
			host_name TEXT NOT NULL DEFAULT '',
			guest_id TEXT NOT NULL,
			guest_name TEXT NOT NULL DEFAULT '',
			winner TEXT NOT NULL,
			end_reason TEXT NOT NULL,
			moves INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, round)
		);
		CREATE INDEX IF NOT EXISTS idx_game_results_host ON game_results(host_id);
		CREATE INDEX IF NOT EXISTS idx_game_results_guest ON game_results(guest_id);

		CREATE TABLE IF NOT EXISTS player_results (
			session_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			player_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			result TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, round, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_player_results_player ON player_results(player_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SetClock overrides the store clock (used by tests).
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Close stops the session watchers, ends every open subscription and closes
// the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()

	s.broker.Shutdown(docstore.ErrUnavailable)
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// parseTime handles both time.Time and the string form SQLite hands back
// for DATETIME columns.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
