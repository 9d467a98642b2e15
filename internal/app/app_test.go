package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-analyst/internal/config"
	"equity-analyst/internal/jobs"
	"equity-analyst/internal/report"
	"equity-analyst/internal/storage"
)

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Driver = storage.DriverSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "reports.db")
	cfg.Client.PollInterval = time.Millisecond
	cfg.Client.MaxAttempts = 3
	cfg.Client.RequestTimeout = time.Second

	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

func seed(t *testing.T, a *App, tickers ...string) {
	t.Helper()
	store, err := storage.Open(context.Background(), a.Config, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	for i, tk := range tickers {
		rep := report.Report{
			Ticker:          tk,
			TechnicalSignal: report.SignalBullish,
			SentimentScore:  7.5,
			Catalysts:       []string{"order inflows"},
			Risks:           []string{"valuation", "input costs"},
			Recommendation:  "Accumulate on dips,\nstop below 200 DMA",
		}
		require.NoError(t, store.Put(context.Background(), tk, decimal.NewFromInt(int64(1000+i)), rep))
	}
}

func TestShowPrintsStoredReports(t *testing.T) {
	a, out := testApp(t)
	seed(t, a, "TCS.NS", "INFY.NS")

	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 10}))

	text := out.String()
	assert.Contains(t, text, "Ticker")
	assert.Contains(t, text, "TCS.NS")
	assert.Contains(t, text, "INFY.NS")
	assert.Contains(t, text, "1000.00")
	assert.Contains(t, text, "Accumulate on dips, stop below 200 DMA")
}

func TestShowEmptyStore(t *testing.T) {
	a, out := testApp(t)

	require.NoError(t, a.Show(context.Background(), ShowOptions{Limit: 5}))
	assert.Equal(t, "no reports stored\n", out.String())
}

func TestExportWritesCSV(t *testing.T) {
	a, _ := testApp(t)
	seed(t, a, "TCS.NS", "INFY.NS", "RELIANCE.NS")

	path := filepath.Join(t.TempDir(), "out", "reports.csv")
	require.NoError(t, a.Export(context.Background(), ExportOptions{CSVPath: path, Limit: 2}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ticker", rows[0][0])
	assert.Equal(t, "Bullish", rows[1][3])
	assert.Equal(t, "valuation; input costs", rows[1][6])
}

func TestExportRequiresPath(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Export(context.Background(), ExportOptions{}))
}

func TestAnalyzePrintsCachedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed","source":"cache","result":{"ticker":"TCS.NS","technical_signal":"Bearish","sentiment_score":3,"catalysts":[],"risks":["margin pressure"],"risk_summary":"","recommendation":"Avoid","degraded":false}}`))
	}))
	defer srv.Close()

	a, out := testApp(t)
	require.NoError(t, a.Analyze(context.Background(), AnalyzeOptions{Ticker: "tcs", BaseURL: srv.URL}))

	text := out.String()
	assert.Contains(t, text, "TCS.NS")
	assert.Contains(t, text, "cache")
	assert.Contains(t, text, "Bearish")
	assert.Contains(t, text, "3.0/10")
	assert.Contains(t, text, "- margin pressure")
	assert.Contains(t, text, "Avoid")
}

func TestAnalyzeReportsFailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/status/") {
			_, _ = w.Write([]byte(`{"status":"failed","error":"chair role: boom"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"started","job_id":"abc"}`))
	}))
	defer srv.Close()

	a, _ := testApp(t)
	err := a.Analyze(context.Background(), AnalyzeOptions{Ticker: "TCS", BaseURL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chair role: boom")
}

func TestAnalyzeRequiresTicker(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Analyze(context.Background(), AnalyzeOptions{Ticker: "  "}))
}

func TestWarmRequiresTickers(t *testing.T) {
	a, _ := testApp(t)
	assert.Error(t, a.Warm(context.Background(), WarmOptions{}))
}

func TestWaitForJobsCountsFailures(t *testing.T) {
	registry := jobs.NewMemoryRegistry(0, zerolog.Nop())
	ok := registry.Create("TCS.NS")
	bad := registry.Create("INFY.NS")
	slow := registry.Create("WIPRO.NS")

	registry.Complete(ok, report.Report{Ticker: "TCS.NS"})
	registry.Fail(bad, "boom")
	go func() {
		time.Sleep(20 * time.Millisecond)
		registry.Complete(slow, report.Report{Ticker: "WIPRO.NS"})
	}()

	failed := waitForJobs(context.Background(), registry, []string{ok, bad, slow, "missing"}, 5*time.Millisecond)
	assert.Equal(t, 2, failed)
}

func TestWaitForJobsCountsPendingOnCancel(t *testing.T) {
	registry := jobs.NewMemoryRegistry(0, zerolog.Nop())
	id := registry.Create("TCS.NS")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Equal(t, 1, waitForJobs(ctx, registry, []string{id}, 5*time.Millisecond))
}
