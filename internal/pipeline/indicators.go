package pipeline

import (
	"context"
	"fmt"
	"strings"

	"equity-analyst/internal/fetcher"
)

const (
	rsiPeriod     = 14
	smaPeriod     = 20
	historyPeriod = "1mo"
	pending       = "Calculating..."
)

// RSI returns the Wilder relative strength index of the last close.
// The first average is a simple mean of period changes; later values are smoothed.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		up, down := 0.0, 0.0
		if change > 0 {
			up = change
		} else {
			down = -change
		}
		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), true
}

// Technicals is the quant role's input snapshot.
type Technicals struct {
	Ticker string
	Price  float64
	RSI    float64
	HasRSI bool
	MA20   float64
	HasMA  bool
}

// ComputeTechnicals derives the snapshot from daily closes, oldest first.
func ComputeTechnicals(ticker string, closes []float64) (Technicals, error) {
	if len(closes) == 0 {
		return Technicals{}, fmt.Errorf("no price history for %s", ticker)
	}
	t := Technicals{Ticker: ticker, Price: closes[len(closes)-1]}
	t.RSI, t.HasRSI = RSI(closes, rsiPeriod)
	t.MA20, t.HasMA = SMA(closes, smaPeriod)
	return t, nil
}

// String renders the snapshot the way the quant role reads it.
func (t Technicals) String() string {
	rsi, ma := pending, pending
	if t.HasRSI {
		rsi = fmt.Sprintf("%.2f", t.RSI)
	}
	if t.HasMA {
		ma = fmt.Sprintf("%.2f", t.MA20)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- Data for %s ---\n", t.Ticker)
	fmt.Fprintf(&b, "Price: %.2f\n", t.Price)
	fmt.Fprintf(&b, "RSI(%d): %s\n", rsiPeriod, rsi)
	fmt.Fprintf(&b, "MA%d: %s\n", smaPeriod, ma)
	return b.String()
}

// technicalBrief fetches history and renders it; failures become a note for the model.
func technicalBrief(ctx context.Context, history fetcher.HistoryFetcher, ticker string) (string, error) {
	if history == nil {
		return fmt.Sprintf("Error: no price history source configured for %s.", ticker), nil
	}
	closes, err := history.FetchCloses(ctx, ticker, historyPeriod)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("Error: No data found for %s.", ticker), err
	}
	t, err := ComputeTechnicals(ticker, closes)
	if err != nil {
		return fmt.Sprintf("Error: No data found for %s.", ticker), err
	}
	return t.String(), nil
}
