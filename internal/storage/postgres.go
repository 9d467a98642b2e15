package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"equity-analyst/internal/config"
	"equity-analyst/internal/report"
)

const (
	createReportsTableSQL = `CREATE TABLE IF NOT EXISTS reports (
        ticker      TEXT PRIMARY KEY,
        price       NUMERIC NOT NULL,
        computed_at TIMESTAMPTZ NOT NULL,
        report      JSONB NOT NULL
    );`

	upsertReportSQL = `INSERT INTO reports (
        ticker,
        price,
        computed_at,
        report
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (ticker) DO UPDATE
    SET
        price       = EXCLUDED.price,
        computed_at = EXCLUDED.computed_at,
        report      = EXCLUDED.report;`

	getReportSQL = `SELECT
        ticker,
        price::text,
        computed_at,
        report
    FROM reports
    WHERE ticker = $1;`

	listReportsSQL = `SELECT
        ticker,
        price::text,
        computed_at,
        report
    FROM reports
    ORDER BY computed_at DESC
    LIMIT $1;`

	listAllReportsSQL = `SELECT
        ticker,
        price::text,
        computed_at,
        report
    FROM reports
    ORDER BY computed_at DESC;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for the postgres driver")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps reports in a single keyed table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate creates the reports table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createReportsTableSQL); err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}
	return nil
}

// Put upserts the ticker's report.
func (s *PostgresStore) Put(ctx context.Context, ticker string, price decimal.Decimal, r report.Report) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := report.Marshal(r)
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertReportSQL,
		ticker,
		price.String(),
		time.Now().UTC(),
		payload,
	); execErr != nil {
		return fmt.Errorf("upsert report: %w", execErr)
	}
	return nil
}

// Get loads the ticker's report.
func (s *PostgresStore) Get(ctx context.Context, ticker string) (Record, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Record{}, false, err
	}

	rows, queryErr := pool.Query(ctx, getReportSQL, ticker)
	if queryErr != nil {
		return Record{}, false, fmt.Errorf("get report: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Record{}, false, fmt.Errorf("get report: %w", rows.Err())
		}
		return Record{}, false, nil
	}

	rec, scanErr := scanRecord(rows)
	if scanErr != nil {
		return Record{}, false, scanErr
	}
	return rec, true, nil
}

// List returns the most recently computed reports.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var queryErr error
	if limit > 0 {
		rows, queryErr = pool.Query(ctx, listReportsSQL, limit)
	} else {
		rows, queryErr = pool.Query(ctx, listAllReportsSQL)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list reports: %w", queryErr)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanRecord(rows pgx.Rows) (Record, error) {
	var (
		ticker     string
		priceStr   string
		computedAt time.Time
		payload    []byte
	)

	if err := rows.Scan(&ticker, &priceStr, &computedAt, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan report: %w", err)
	}

	rec, err := decodeRecord(ticker, priceStr, payload)
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = computedAt.UTC()
	return rec, nil
}

var _ ReportStore = (*PostgresStore)(nil)
