package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"equity-analyst/internal/storage"
)

// Export writes stored reports as CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" {
		return errors.New("--csv must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.List(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Msg("no reports to export")
		return nil
	}

	if opts.CSVPath == "-" {
		return writeRecordsCSV(a.Out, records)
	}

	if err := ensureDir(opts.CSVPath); err != nil {
		return err
	}
	file, err := os.Create(opts.CSVPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.CSVPath, err)
	}
	defer file.Close()

	if err := writeRecordsCSV(file, records); err != nil {
		return err
	}
	a.Logger.Info().Int("reports", len(records)).Str("path", opts.CSVPath).Msg("reports exported")
	return nil
}

func writeRecordsCSV(w io.Writer, records []storage.Record) error {
	writer := csv.NewWriter(w)

	header := []string{"ticker", "price", "computed_at", "technical_signal", "sentiment_score", "catalysts", "risks", "risk_summary", "recommendation", "degraded"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		r := rec.Report
		row := []string{
			rec.Ticker,
			rec.Price.String(),
			rec.Timestamp.UTC().Format(time.RFC3339),
			string(r.TechnicalSignal),
			fmt.Sprintf("%.2f", r.SentimentScore),
			strings.Join(r.Catalysts, "; "),
			strings.Join(r.Risks, "; "),
			r.RiskSummary,
			r.Recommendation,
			fmt.Sprintf("%t", r.Degraded),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
