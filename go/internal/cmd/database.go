package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/config"
	"github.com/mcdev12/ludotime/go/internal/dbconfig"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/mcdev12/ludotime/go/internal/store/memory"
	"github.com/mcdev12/ludotime/go/internal/store/postgres"
	"github.com/mcdev12/ludotime/go/internal/store/sqlite"
)

func setupStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, sessions are lost on restart")
		return memory.New(), nil

	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return st, nil

	case config.DriverPostgres:
		dbCfg, err := dbconfig.NewConfigFromEnv()
		if err != nil {
			return nil, err
		}
		listenerCfg := postgres.DefaultListenerConfig()
		listenerCfg.DatabaseURL = dbCfg.DSN()
		st, err := postgres.Open(ctx, listenerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Info().
			Str("host", dbCfg.Host).
			Int("port", dbCfg.Port).
			Str("database", dbCfg.Database).
			Msg("connected to postgres store")
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
