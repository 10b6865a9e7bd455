package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/search"
	"github.com/collabhub/matching/internal/seeding"
	"github.com/collabhub/matching/internal/storage"
	"github.com/collabhub/matching/pkg/utils"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config       *config.Config
	KeywordIndex *keyword.BleveIndex
	Ledger       *storage.SQLiteLedger
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Seeder       *seeding.Seeder
}

func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.LedgerPath)
	if err != nil {
		_ = keywordIndex.Close()
		return nil, fmt.Errorf("failed to initialize sync ledger: %w", err)
	}
	c := &Components{Config: cfg, KeywordIndex: keywordIndex, Ledger: ledger}

	engine, err := search.NewEngine(keywordIndex, &cfg.Search, search.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize query engine: %w", err)
	}
	c.Engine = engine

	// Per-document write logs are noisy, so the gateway only logs in debug mode.
	idxOpts := []indexer.IndexerOption{}
	if debug && logger != nil {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	c.Indexer = indexer.NewIndexer(keywordIndex, &cfg.Index, idxOpts...)
	c.Seeder = seeding.NewSeeder(c.Indexer, seeding.WithLogger(logger), seeding.WithLedger(ledger))

	if logger != nil {
		logger.Info("components initialized",
			zap.String("bleve_index_path", cfg.Storage.BleveIndexPath),
			zap.String("ledger_path", cfg.Storage.LedgerPath),
			zap.Int("batch_size", cfg.Index.BatchSize))
	}
	return c, nil
}

// withComponents loads the config at configPath, opens the index and ledger,
// runs fn and closes everything. Ctrl-C cancels the context passed to fn.
func withComponents[T any](configPath string, fn func(ctx context.Context, c *Components) (T, error)) (T, error) {
	var zero T
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return zero, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return zero, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		return zero, err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, components)
}
