package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/tui-tictac/internal/config"
	"github.com/vovakirdan/tui-tictac/internal/docstore"
	"github.com/vovakirdan/tui-tictac/internal/multiplayer"
	"github.com/vovakirdan/tui-tictac/internal/platform/tui"
	"github.com/vovakirdan/tui-tictac/internal/remote"
	"github.com/vovakirdan/tui-tictac/internal/storage"
)

const dialTimeout = 10 * time.Second

// backend bundles the session store with the optional local results database.
type backend struct {
	store    docstore.Store
	recorder multiplayer.OutcomeRecorder
	stats    tui.StatsSource
	db       *storage.Store
	closers  []func() error
}

// Close releases everything the backend opened, newest first.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// withDB makes db the recorder and stats source. stats is left as a nil
// interface when no database is open.
func (b *backend) withDB(db *storage.Store) {
	b.db = db
	b.recorder = db
	b.stats = db
	b.closers = append(b.closers, db.Close)
}

// openBackend opens the session store selected by cfg. With the remote
// backend the local database still records results when it can be opened.
func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (*backend, error) {
	b := &backend{}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		mem := docstore.NewMemory()
		b.store = mem
		b.closers = append(b.closers, mem.Close)

	case config.BackendSQLite:
		db, err := storage.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		b.store = db
		b.withDB(db)

	case config.BackendRemote:
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		client, err := remote.Dial(dialCtx, cfg.Store.URL, logger.WithPrefix("remote"))
		if err != nil {
			return nil, err
		}
		b.store = client
		b.closers = append(b.closers, client.Close)

		if cfg.Store.Path != "" {
			db, err := storage.Open(cfg.Store.Path)
			if err != nil {
				logger.Warn("results will not be recorded", "error", err)
			} else {
				b.withDB(db)
			}
		}

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return b, nil
}

func newCoordinator(b *backend, cfg config.Config, logger *log.Logger) *multiplayer.Coordinator {
	return multiplayer.NewCoordinator(b.store, cfg.Session.CoordinatorConfig(), logger.WithPrefix("engine"))
}
