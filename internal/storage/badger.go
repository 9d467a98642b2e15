package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/timshannon/badgerhold/v4"

	"equity-analyst/internal/report"
)

// badgerRecord is the value stored under each ticker key.
type badgerRecord struct {
	Ticker     string
	Price      string
	ComputedAt time.Time
	Report     []byte
}

// BadgerStore keeps reports in an embedded key-value directory.
type BadgerStore struct {
	store  *badgerhold.Store
	logger zerolog.Logger
}

// OpenBadger opens the badger directory at path.
func OpenBadger(path string, logger zerolog.Logger) (*BadgerStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.badger_path is required for the badger driver")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("badger report store ready")
	return &BadgerStore{store: store, logger: logger}, nil
}

// Put upserts the ticker's report.
func (s *BadgerStore) Put(ctx context.Context, ticker string, price decimal.Decimal, r report.Report) error {
	if s == nil || s.store == nil {
		return ErrNotConfigured
	}

	payload, err := report.Marshal(r)
	if err != nil {
		return err
	}

	rec := badgerRecord{
		Ticker:     ticker,
		Price:      price.String(),
		ComputedAt: time.Now().UTC(),
		Report:     payload,
	}
	if err := s.store.Upsert(ticker, &rec); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Get loads the ticker's report.
func (s *BadgerStore) Get(ctx context.Context, ticker string) (Record, bool, error) {
	if s == nil || s.store == nil {
		return Record{}, false, ErrNotConfigured
	}

	var rec badgerRecord
	err := s.store.Get(ticker, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get report: %w", err)
	}

	out, err := rec.record()
	if err != nil {
		return Record{}, false, err
	}
	return out, true, nil
}

// List returns the most recently computed reports.
func (s *BadgerStore) List(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.store == nil {
		return nil, ErrNotConfigured
	}

	query := badgerhold.Where("Ticker").Ne("").SortBy("ComputedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recs []badgerRecord
	if err := s.store.Find(&recs, query); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	records := make([]Record, 0, len(recs))
	for _, rec := range recs {
		out, err := rec.record()
		if err != nil {
			return nil, err
		}
		records = append(records, out)
	}
	return records, nil
}

// Close closes the badger directory.
func (s *BadgerStore) Close() error {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (r badgerRecord) record() (Record, error) {
	rec, err := decodeRecord(r.Ticker, r.Price, r.Report)
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = r.ComputedAt.UTC()
	return rec, nil
}

var _ ReportStore = (*BadgerStore)(nil)
