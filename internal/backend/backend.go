// Package backend opens the storage backend selected by configuration and
// hands the repositories to the rest of the service.
package backend

import (
	"context"
	"fmt"

	bq "cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/config"
	"github.com/pennywise/pennywise/internal/store"
	"github.com/pennywise/pennywise/internal/store/bigquery"
	"github.com/pennywise/pennywise/internal/store/memory"
	"github.com/pennywise/pennywise/internal/store/sqlite"
)

// Backend bundles the repositories of one storage backend.
type Backend struct {
	Transactions store.TransactionRepository
	Users        store.UserRepository

	closers []func() error
}

// Open creates the backend named by cfg.DataBackend.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		log.Warn().Msg("using in-memory backend; data is lost on restart")
		return &Backend{
			Transactions: memory.NewTransactionStore(),
			Users:        memory.NewUserStore(),
		}, nil

	case config.BackendSQLite:
		s, err := sqlite.NewStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		log.Info().Str("path", cfg.SQLiteDBPath).Msg("sqlite backend ready")
		return &Backend{
			Transactions: s,
			Users:        s.Users(),
			closers:      []func() error{s.Close},
		}, nil

	case config.BackendBigQuery:
		client, err := bq.NewClient(ctx, cfg.BigQueryProjectID)
		if err != nil {
			return nil, fmt.Errorf("open bigquery backend: %w", err)
		}
		repo := bigquery.NewRepository(client, cfg.BigQueryProjectID, cfg.BigQueryDataset)
		log.Info().
			Str("project", cfg.BigQueryProjectID).
			Str("dataset", cfg.BigQueryDataset).
			Msg("bigquery backend ready")
		return &Backend{
			Transactions: repo,
			Users:        repo.Users(),
			closers:      []func() error{client.Close},
		}, nil

	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// Close releases any resources the backend holds.
func (b *Backend) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
