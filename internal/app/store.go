package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/simp-lee/rentadmin/internal/config"
	"github.com/simp-lee/rentadmin/internal/listing"
	"github.com/simp-lee/rentadmin/internal/state"
)

// openStore builds the pagination preference store selected by
// state.driver. The returned store owns its connection. The memory store
// holds one preference per resource of every session the manager keeps.
func openStore(ctx context.Context, cfg *config.Config, resources int, logger *slog.Logger) (state.Store, error) {
	switch cfg.State.Driver {
	case state.DriverDatabase:
		db, err := config.SetupDatabase(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}
		store, err := state.NewGormStore(db)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, fmt.Errorf("create database store: %w", err)
		}
		return store, nil
	case state.DriverRedis:
		client, err := config.SetupRedis(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("setup redis: %w", err)
		}
		return state.NewRedisStore(client, cfg.Redis.Prefix, config.Duration(cfg.State.TTL, 0)), nil
	case state.DriverMemory, "":
		sessions := cfg.Listing.MaxSessions
		if sessions <= 0 {
			sessions = listing.DefaultMaxSessions
		}
		return state.NewMemoryStore(state.MemoryOptions{
			MaxEntries: sessions * max(resources, 1),
			TTL:        config.Duration(cfg.State.TTL, 0),
		}), nil
	}
	return nil, fmt.Errorf("unsupported state driver %q", cfg.State.Driver)
}
