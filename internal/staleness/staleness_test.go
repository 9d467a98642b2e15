package staleness

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"equity-analyst/internal/fetcher"
	"equity-analyst/internal/storage"
)

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func record(price float64, age time.Duration) storage.Record {
	return storage.Record{
		Ticker:    "TCS.NS",
		Price:     decimal.NewFromFloat(price),
		Timestamp: now.Add(-age),
	}
}

func TestIsFresh(t *testing.T) {
	policy := NewPolicy(2*time.Hour, 0.01)

	tests := []struct {
		name    string
		stored  storage.Record
		current fetcher.Price
		want    bool
	}{
		{"small move within age", record(100, 30*time.Minute), fetcher.NewPrice(decimal.NewFromFloat(100.5)), true},
		{"three percent move", record(100, 30*time.Minute), fetcher.NewPrice(decimal.NewFromFloat(103)), false},
		{"exactly at delta", record(100, 30*time.Minute), fetcher.NewPrice(decimal.NewFromFloat(101)), false},
		{"downward move", record(100, 30*time.Minute), fetcher.NewPrice(decimal.NewFromFloat(98)), false},
		{"exactly max age", record(100, 2*time.Hour), fetcher.NewPrice(decimal.NewFromFloat(100)), false},
		{"older than max age", record(100, 5*time.Hour), fetcher.NewPrice(decimal.NewFromFloat(100)), false},
		{"price unavailable fails open", record(100, time.Hour), fetcher.Unavailable(), true},
		{"stored price zero", record(0, time.Hour), fetcher.NewPrice(decimal.NewFromFloat(250)), true},
		{"stored price negative", record(-1, time.Hour), fetcher.NewPrice(decimal.NewFromFloat(250)), true},
		{"current price zero", record(100, time.Hour), fetcher.NewPrice(decimal.Zero), true},
		{"unavailable and too old", record(100, 3*time.Hour), fetcher.Unavailable(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.IsFresh(tt.stored, tt.current, now))
		})
	}
}

func TestEvaluateReportsDeviation(t *testing.T) {
	policy := NewPolicy(time.Hour, 0.01)

	d := policy.Evaluate(record(100, 10*time.Minute), fetcher.NewPrice(decimal.NewFromFloat(103)), now)

	assert.False(t, d.Fresh)
	assert.True(t, d.Deviation.Equal(decimal.NewFromFloat(0.03)), d.Deviation.String())
	assert.Equal(t, 10*time.Minute, d.Age)
	assert.Contains(t, d.Reason, "3.00%")
}

func TestDeviationNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		Deviation(decimal.Zero, fetcher.NewPrice(decimal.NewFromInt(10)))
		Deviation(decimal.Zero, fetcher.Unavailable())
		Deviation(decimal.Decimal{}, fetcher.Price{})
	})
	assert.True(t, Deviation(decimal.Zero, fetcher.NewPrice(decimal.NewFromInt(10))).IsZero())
}
