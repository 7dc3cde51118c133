package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tokenart/internal/adapter/repo"
	"tokenart/internal/domain"
	"tokenart/internal/infra"
)

// Open returns the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg infra.StoreConfig, logger zerolog.Logger) (domain.Store, error) {
	switch cfg.StoreDriver {
	case infra.DriverMemory:
		logger.Warn().Msg("using in-memory store, contributions are lost on restart")
		return NewMemoryStore(), nil
	case infra.DriverSQLite, "":
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("file", s.File()).Msg("sqlite store opened")
		return s, nil
	case infra.DriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("postgres store connected")
		return repo.NewLedgerStore(pool, logger), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
}
