// Package app wires configuration to the answer store for both binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linguaporta/internal/config"
	"linguaporta/internal/database"
	"linguaporta/internal/repository"
	"linguaporta/internal/service"
)

// OpenGrid opens the configured backend. The returned close function releases
// any connection it holds and is never nil.
func OpenGrid(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.AnswerGrid, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory answer store; answers are lost on exit")
		return repository.NewMemoryRepository(), noop, nil

	case config.BackendSheets:
		repo, err := repository.NewSheetsRepository(ctx, cfg.Sheets.SpreadsheetID, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open sheets backend: %w", err)
		}
		logger.Info("answer store backed by google sheets",
			zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID))
		return repo, noop, nil

	case config.BackendSQL:
		db, err := database.InitializeWithConfig(cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize database: %w", err)
		}

		applied, err := db.RunMigrations(ctx)
		if err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		for _, name := range applied {
			logger.Info("applied migration", zap.String("migration", name))
		}

		logger.Info("answer store backed by database",
			zap.String("database_type", cfg.Database.Type),
			zap.String("driver", db.Dialect.DriverName()))
		return repository.NewAnswerRepository(db), db.Close, nil

	default:
		return nil, noop, fmt.Errorf("unsupported backend %q", cfg.Store.Backend)
	}
}

// StoreConfig extracts the partition names the answer service needs.
func StoreConfig(cfg *config.Config) service.StoreConfig {
	return service.StoreConfig{
		WordMeaningPartition: cfg.Store.WordMeaningPartition,
		FillBlankPartition:   cfg.Store.FillBlankPartition,
	}
}

// OpenAnswerService opens the grid, builds the service and provisions the
// partitions when store.auto_provision is set.
func OpenAnswerService(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...service.Option) (*service.AnswerService, func() error, error) {
	grid, closeGrid, err := OpenGrid(ctx, cfg, logger)
	if err != nil {
		return nil, closeGrid, err
	}

	answers, err := service.NewAnswerService(grid, StoreConfig(cfg), logger, opts...)
	if err != nil {
		closeGrid()
		return nil, func() error { return nil }, err
	}

	if cfg.Store.AutoProvision {
		if err := answers.Provision(ctx); err != nil {
			closeGrid()
			return nil, func() error { return nil }, err
		}
	}

	if err := answers.CheckPartitions(ctx); err != nil {
		// Requests will report the missing partitions; startup continues.
		logger.Warn("answer store is not provisioned", zap.Error(err))
	}

	return answers, closeGrid, nil
}
