package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"equity-analyst/internal/config"
	"equity-analyst/internal/report"
)

var (
	// ErrNotConfigured indicates the backing database was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrUnknownDriver is returned for an unsupported storage.driver value.
	ErrUnknownDriver = errors.New("storage: unknown driver")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// ReportStore persists one report per normalized ticker.
type ReportStore interface {
	// Get returns found=false with a nil error when the ticker has no record.
	Get(ctx context.Context, ticker string) (Record, bool, error)
	// Put replaces the ticker's record, stamping it with the current time.
	Put(ctx context.Context, ticker string, price decimal.Decimal, r report.Report) error
	// List returns up to limit records, most recent first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ReportStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	logger = logger.With().Str("component", "storage").Str("driver", driver).Logger()

	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(cfg.Storage.SQLitePath, logger)
	case DriverPostgres:
		pool, err := NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info().Msg("postgres report store ready")
		return store, nil
	case DriverBadger:
		return OpenBadger(cfg.Storage.BadgerPath, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
	}
}

func decodeRecord(ticker, price string, payload []byte) (Record, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Record{}, fmt.Errorf("parse price for %s: %w", ticker, err)
	}
	r, err := report.Unmarshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("decode report for %s: %w", ticker, err)
	}
	return Record{Ticker: ticker, Price: p, Report: r}, nil
}
