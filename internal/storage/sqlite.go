package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"equity-analyst/internal/report"
)

// reportRow is the GORM model behind the reports table.
type reportRow struct {
	Ticker     string    `gorm:"primaryKey"`
	Price      string    `gorm:"not null"`
	ComputedAt time.Time `gorm:"index;not null"`
	Report     string    `gorm:"type:text;not null"`
}

func (reportRow) TableName() string { return "reports" }

// SQLiteStore keeps reports in an embedded single-file database.
type SQLiteStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&reportRow{}); err != nil {
		return nil, fmt.Errorf("migrate reports table: %w", err)
	}

	logger.Info().Str("path", path).Msg("sqlite report store ready")
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Put upserts the ticker's report.
func (s *SQLiteStore) Put(ctx context.Context, ticker string, price decimal.Decimal, r report.Report) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}

	payload, err := report.Marshal(r)
	if err != nil {
		return err
	}

	row := reportRow{
		Ticker:     ticker,
		Price:      price.String(),
		ComputedAt: time.Now().UTC(),
		Report:     string(payload),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "computed_at", "report"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// Get loads the ticker's report.
func (s *SQLiteStore) Get(ctx context.Context, ticker string) (Record, bool, error) {
	if s == nil || s.db == nil {
		return Record{}, false, ErrNotConfigured
	}

	var row reportRow
	err := s.db.WithContext(ctx).Where("ticker = ?", ticker).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get report: %w", err)
	}

	rec, err := row.record()
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// List returns the most recently computed reports.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}

	query := s.db.WithContext(ctx).Order("computed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []reportRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r reportRow) record() (Record, error) {
	rec, err := decodeRecord(r.Ticker, r.Price, []byte(r.Report))
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = r.ComputedAt.UTC()
	return rec, nil
}

var _ ReportStore = (*SQLiteStore)(nil)
