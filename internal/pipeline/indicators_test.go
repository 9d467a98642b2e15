package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIRequiresMoreThanPeriodCloses(t *testing.T) {
	_, ok := RSI(make([]float64, 14), 14)
	assert.False(t, ok)
}

func TestRSIMonotonicSeries(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	v, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 50
	}
	v, ok = RSI(flat, 14)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestRSIBalancedMoves(t *testing.T) {
	closes := []float64{100}
	for i := 0; i < 14; i++ {
		if i%2 == 0 {
			closes = append(closes, closes[len(closes)-1]+1)
		} else {
			closes = append(closes, closes[len(closes)-1]-1)
		}
	}
	v, ok := RSI(closes, 14)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestSMA(t *testing.T) {
	_, ok := SMA([]float64{1, 2, 3}, 4)
	assert.False(t, ok)

	v, ok := SMA([]float64{10, 1, 2, 3, 4}, 4)
	require.True(t, ok)
	assert.InDelta(t, 2.5, v, 1e-9)
}

func TestTechnicalsStringMarksMissingIndicators(t *testing.T) {
	tech, err := ComputeTechnicals("TCS.NS", []float64{3800, 3810, 3825.5})
	require.NoError(t, err)

	out := tech.String()
	assert.Contains(t, out, "Price: 3825.50")
	assert.Contains(t, out, "RSI(14): Calculating...")
	assert.Contains(t, out, "MA20: Calculating...")

	_, err = ComputeTechnicals("TCS.NS", nil)
	assert.Error(t, err)
}

type stubHistory struct {
	closes []float64
	err    error
}

func (s stubHistory) FetchCloses(ctx context.Context, symbol, period string) ([]float64, error) {
	return s.closes, s.err
}

func TestTechnicalBriefFallsBackToNote(t *testing.T) {
	brief, err := technicalBrief(context.Background(), stubHistory{err: errors.New("404")}, "NOPE.NS")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(brief, "Error: No data found"))

	closes := make([]float64, 22)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	brief, err = technicalBrief(context.Background(), stubHistory{closes: closes}, "OK.NS")
	require.NoError(t, err)
	assert.NotContains(t, brief, "Calculating")
}
