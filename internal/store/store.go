// Package store opens the configured workflow store.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"journalflow.org/internal/config"
	"journalflow.org/internal/migrate"
	"journalflow.org/internal/store/memory"
	"journalflow.org/internal/store/pg"
	"journalflow.org/internal/workflow"
)

// Handle is an opened store. DB is nil for the in-memory driver.
type Handle struct {
	workflow.Store
	DB    *sql.DB
	close func() error
}

func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Open connects to the configured driver. With applyMigrations set, pending
// migrations are applied before the handle is returned.
func Open(ctx context.Context, cfg config.DatabaseConfig, applyMigrations bool, log zerolog.Logger) (*Handle, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return &Handle{Store: memory.New()}, nil
	case "postgres", "":
		s, err := pg.Open(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if applyMigrations {
			mgr := migrate.NewManager(s.DB(), cfg.SeedsDir, migrate.WithLogger(log))
			if err := mgr.Up(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		return &Handle{Store: s, DB: s.DB(), close: s.Close}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
