package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints the most recently computed reports.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
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
		fmt.Fprintln(a.Out, "no reports stored")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tPrice\tComputed (UTC)\tAge\tSignal\tSentiment\tRecommendation")

	now := time.Now()
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%.1f\t%s\n",
			rec.Ticker,
			rec.Price.StringFixed(2),
			rec.Timestamp.UTC().Format(time.RFC3339),
			now.Sub(rec.Timestamp).Round(time.Minute),
			rec.Report.TechnicalSignal,
			rec.Report.SentimentScore,
			truncate(sanitizeInline(rec.Report.Recommendation), 60),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func truncate(v string, max int) string {
	runes := []rune(v)
	if len(runes) <= max {
		return v
	}
	return string(runes[:max-3]) + "..."
}
