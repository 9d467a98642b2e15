package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-analyst/internal/config"
	"equity-analyst/internal/report"
)

func sampleReport(ticker string, score float64) report.Report {
	return report.Report{
		Ticker:          ticker,
		TechnicalSignal: report.SignalBullish,
		SentimentScore:  score,
		Catalysts:       []string{"order book", "margin expansion", "dividend"},
		Risks:           []string{"valuation", "rupee", "regulation"},
		RiskSummary:     "valuation. rupee. regulation",
		Recommendation:  "Accumulate",
		GeneratedAt:     time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func openBackends(t *testing.T) map[string]ReportStore {
	t.Helper()
	dir := t.TempDir()
	logger := zerolog.Nop()

	sqliteStore, err := OpenSQLite(filepath.Join(dir, "reports.db"), logger)
	require.NoError(t, err)
	badgerStore, err := OpenBadger(filepath.Join(dir, "badger"), logger)
	require.NoError(t, err)

	stores := map[string]ReportStore{
		DriverSQLite: sqliteStore,
		DriverBadger: badgerStore,
	}
	if pg := openTestPostgres(t); pg != nil {
		stores[DriverPostgres] = pg
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

// openTestPostgres returns an emptied postgres store when ANALYST_TEST_POSTGRES_DSN
// is set, and nil otherwise.
func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("ANALYST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Log("ANALYST_TEST_POSTGRES_DSN not set; postgres backend not exercised")
		return nil
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)
	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	_, err = pool.Exec(ctx, "TRUNCATE reports")
	require.NoError(t, err)
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	if os.Getenv("ANALYST_TEST_POSTGRES_DSN") == "" {
		t.Skip("ANALYST_TEST_POSTGRES_DSN not set")
	}
	store := openTestPostgres(t)
	defer store.Close()
	ctx := context.Background()

	want := sampleReport("INFY.NS", 6)
	require.NoError(t, store.Put(ctx, "INFY.NS", decimal.RequireFromString("1512.40"), want))
	require.NoError(t, store.Put(ctx, "WIPRO.NS", decimal.NewFromInt(480), sampleReport("WIPRO.NS", 4)))

	rec, found, err := store.Get(ctx, "INFY.NS")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, rec.Report)
	assert.True(t, rec.Price.Equal(decimal.RequireFromString("1512.40")), rec.Price.String())

	_, found, err = store.Get(ctx, "MISSING.NS")
	require.NoError(t, err)
	assert.False(t, found)

	latest, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "WIPRO.NS", latest[0].Ticker)
}

func TestReportStoreContract(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := store.Get(ctx, "MISSING.NS")
			require.NoError(t, err)
			assert.False(t, found, "miss must be an explicit absence")

			before := time.Now().UTC().Add(-time.Second)
			want := sampleReport("TCS.NS", 7.5)
			require.NoError(t, store.Put(ctx, "TCS.NS", decimal.RequireFromString("3850.55"), want))

			rec, found, err := store.Get(ctx, "TCS.NS")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "TCS.NS", rec.Ticker)
			assert.True(t, rec.Price.Equal(decimal.RequireFromString("3850.55")), rec.Price.String())
			assert.Equal(t, want, rec.Report)
			assert.True(t, rec.Timestamp.After(before))

			replacement := sampleReport("TCS.NS", 2)
			replacement.TechnicalSignal = report.SignalBearish
			require.NoError(t, store.Put(ctx, "TCS.NS", decimal.NewFromInt(3700), replacement))

			rec, found, err = store.Get(ctx, "TCS.NS")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, replacement, rec.Report)
			assert.True(t, rec.Price.Equal(decimal.NewFromInt(3700)))

			all, err := store.List(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, all, 1, "upsert must never duplicate a ticker")
		})
	}
}

func TestReportStoreListOrder(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, ticker := range []string{"A.NS", "B.NS", "C.NS"} {
				require.NoError(t, store.Put(ctx, ticker, decimal.NewFromInt(10), sampleReport(ticker, 5)))
				time.Sleep(5 * time.Millisecond)
			}

			recent, err := store.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "C.NS", recent[0].Ticker)
			assert.Equal(t, "B.NS", recent[1].Ticker)
		})
	}
}

func TestDegradedReportRoundTrip(t *testing.T) {
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := report.Degraded("XYZ.NS", "Looks okay overall.", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, store.Put(ctx, "XYZ.NS", decimal.Zero, want))

			rec, found, err := store.Get(ctx, "XYZ.NS")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, want, rec.Report)
			assert.True(t, rec.Price.IsZero())
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "mongo"}}
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: DriverPostgres}}
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNilStoresReportNotConfigured(t *testing.T) {
	ctx := context.Background()
	var pg *PostgresStore
	_, _, err := pg.Get(ctx, "A.NS")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, pg.Close())

	var lite *SQLiteStore
	assert.ErrorIs(t, lite.Put(ctx, "A.NS", decimal.Zero, report.Report{}), ErrNotConfigured)
}
