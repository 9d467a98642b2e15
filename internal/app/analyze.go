package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"equity-analyst/internal/client"
	"equity-analyst/internal/report"
)

// Analyze submits a ticker to a running server and waits for the report.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	if strings.TrimSpace(opts.Ticker) == "" {
		return errors.New("ticker is required")
	}

	baseURL := a.Config.Client.BaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	c := client.New(client.Options{
		BaseURL:      baseURL,
		PollInterval: a.Config.Client.PollInterval,
		MaxAttempts:  a.Config.Client.MaxAttempts,
		Timeout:      a.Config.Client.RequestTimeout,
	}, a.Logger)

	res, err := c.Analyze(ctx, opts.Ticker)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case client.OutcomeCompleted:
		if res.Report == nil {
			return errors.New("server reported completion without a result")
		}
		if opts.JSON {
			enc := json.NewEncoder(a.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Report)
		}
		printReport(a.Out, *res.Report, res.Source)
		return nil
	case client.OutcomeFailed:
		return fmt.Errorf("analysis failed: %s", res.Error)
	case client.OutcomeNotFound:
		return fmt.Errorf("job %s is unknown to the server (it may have restarted)", res.JobID)
	case client.OutcomeGaveUp:
		return fmt.Errorf("job %s still pending after %d polls", res.JobID, res.Attempts)
	default:
		return fmt.Errorf("unexpected outcome %q", res.Outcome)
	}
}

func printReport(w io.Writer, r report.Report, source string) {
	fmt.Fprintf(w, "Ticker:            %s\n", r.Ticker)
	if source != "" {
		fmt.Fprintf(w, "Source:            %s\n", source)
	}
	fmt.Fprintf(w, "Technical signal:  %s\n", r.TechnicalSignal)
	fmt.Fprintf(w, "Sentiment score:   %.1f/10\n", r.SentimentScore)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "Generated at:      %s\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if r.Degraded {
		fmt.Fprintln(w, "Note:              degraded report (unstructured committee output)")
	}
	printList(w, "Catalysts", r.Catalysts)
	printList(w, "Risks", r.Risks)
	if r.RiskSummary != "" {
		fmt.Fprintf(w, "\nRisk audit:\n%s\n", r.RiskSummary)
	}
	fmt.Fprintf(w, "\nRecommendation:\n%s\n", r.Recommendation)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
