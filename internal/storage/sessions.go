package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// Session documents live in one JSON column. status and last_activity_at are
// duplicated into indexed columns for the garbage collection query, and
// version backs the compare-and-swap in UpdateIf.
//
// Writes from other processes on the same file reach subscribers through a
// per-session watcher that polls the version column.

// Create implements docstore.Store.
func (s *Store) Create(ctx context.Context, sess docstore.Session) (docstore.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.LastActivityAt = now
	sess.Version = 1

	doc, err := json.Marshal(sess)
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot encode session: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, status, last_activity_at, version, doc)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Status), sess.LastActivityAt.UnixNano(), sess.Version, string(doc),
	)
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot create session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot create session: %w", err)
	}
	if n == 0 {
		return docstore.Session{}, fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, sess.ID)
	}

	s.broker.Publish(sess)
	s.published(sess)
	return sess.Clone(), nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, id string) (docstore.Session, error) {
	return s.load(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) load(ctx context.Context, q queryer, id string) (docstore.Session, error) {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT doc FROM sessions WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Session{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot query session: %w", err)
	}
	return decodeSession(doc)
}

func decodeSession(doc string) (docstore.Session, error) {
	var sess docstore.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot decode session: %w", err)
	}
	return sess, nil
}

// UpdateIf implements docstore.Store.
func (s *Store) UpdateIf(
	ctx context.Context,
	id string,
	cond docstore.Precondition,
	patch docstore.Patch,
) (docstore.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	cur, err := s.load(ctx, tx, id)
	if err != nil {
		return docstore.Session{}, err
	}
	if err := cond.Check(cur); err != nil {
		return cur, err
	}

	next := patch.Apply(cur, s.now())
	doc, err := json.Marshal(next)
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot encode session: %w", err)
	}

	// The version guard catches writers in other processes sharing the file.
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, last_activity_at = ?, version = ?, doc = ?
		 WHERE id = ? AND version = ?`,
		string(next.Status), next.LastActivityAt.UnixNano(), next.Version, string(doc),
		id, cur.Version,
	)
	if err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot update session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return cur, fmt.Errorf("%w: concurrent write to %s", docstore.ErrPreconditionFailed, id)
	}
	if err := tx.Commit(); err != nil {
		return docstore.Session{}, fmt.Errorf("storage: cannot commit session update: %w", err)
	}

	s.broker.Publish(next)
	s.published(next)
	return next.Clone(), nil
}

// Subscribe implements docstore.Store.
func (s *Store) Subscribe(ctx context.Context, id string) (*docstore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	sub := s.broker.Subscribe(cur)
	sub.CloseOnDone(ctx)
	s.watch(cur)
	return sub, nil
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, filter docstore.Filter, limit int) ([]docstore.Session, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Status) > 0 {
		marks := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !filter.InactiveBefore.IsZero() {
		where = append(where, "last_activity_at < ?")
		args = append(args, filter.InactiveBefore.UnixNano())
	}

	query := "SELECT doc FROM sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_activity_at, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query sessions: %w", err)
	}
	defer rows.Close()

	var out []docstore.Session
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		sess, err := decodeSession(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return out, nil
}

// BatchDelete implements docstore.Store.
func (s *Store) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var deleted []string
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("storage: cannot delete session %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit delete: %w", err)
	}

	for _, id := range deleted {
		s.broker.Deleted(id)
		delete(s.watchers, id)
	}
	return nil
}

var _ docstore.Store = (*Store)(nil)
