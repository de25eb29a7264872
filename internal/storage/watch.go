package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vovakirdan/tui-tictac/internal/docstore"
)

// watchInterval is how often a watched session row is re-read for writes
// made by other processes sharing the database file.
const watchInterval = 100 * time.Millisecond

// watcher tracks the newest version published for one subscribed session.
type watcher struct {
	version int64
}

// watch starts polling id unless a watcher is already running. Callers hold s.mu.
func (s *Store) watch(cur docstore.Session) {
	if w, ok := s.watchers[cur.ID]; ok {
		if cur.Version > w.version {
			w.version = cur.Version
		}
		return
	}
	if s.closed {
		return
	}

	w := &watcher{version: cur.Version}
	s.watchers[cur.ID] = w
	s.wg.Add(1)
	go s.poll(cur.ID, w)
}

// published records a version this Store already fanned out. Callers hold s.mu.
func (s *Store) published(sess docstore.Session) {
	if w, ok := s.watchers[sess.ID]; ok && sess.Version > w.version {
		w.version = sess.Version
	}
}

func (s *Store) poll(id string, w *watcher) {
	defer s.wg.Done()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.pollOnce(id, w) {
				return
			}
		}
	}
}

// pollOnce publishes a newer row for id, if any. It reports whether the
// watcher should keep running.
func (s *Store) pollOnce(id string, w *watcher) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker.Count(id) == 0 {
		delete(s.watchers, id)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), watchInterval*10)
	defer cancel()

	var version int64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM sessions WHERE id = ?", id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.broker.Deleted(id)
			delete(s.watchers, id)
			return false
		}
		// Transient (busy file, timeout); try again next tick.
		return true
	}
	if version <= w.version {
		return true
	}

	sess, err := s.load(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.broker.Deleted(id)
			delete(s.watchers, id)
			return false
		}
		return true
	}
	w.version = sess.Version
	s.broker.Publish(sess)
	return true
}

// watching reports how many sessions have a running watcher.
func (s *Store) watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}
