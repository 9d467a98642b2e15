package fetcher

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Price is a live quote that may be unavailable.
type Price struct {
	Value     decimal.Decimal
	Available bool
}

// NewPrice wraps a known quote.
func NewPrice(v decimal.Decimal) Price {
	return Price{Value: v, Available: true}
}

// Unavailable signals a failed or missing lookup.
func Unavailable() Price {
	return Price{}
}

// OrZero returns the quote, or zero when unavailable.
func (p Price) OrZero() decimal.Decimal {
	if !p.Available {
		return decimal.Zero
	}
	return p.Value
}

// PriceFetcher retrieves the latest traded price for a symbol.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// HistoryFetcher retrieves daily closing prices, oldest first.
type HistoryFetcher interface {
	FetchCloses(ctx context.Context, symbol string, period string) ([]float64, error)
}

// BestEffort looks up a price and converts any failure into Unavailable.
func BestEffort(ctx context.Context, f PriceFetcher, symbol string, logger zerolog.Logger) Price {
	if f == nil {
		return Unavailable()
	}
	value, err := f.FetchPrice(ctx, symbol)
	if err != nil {
		logger.Warn().Err(err).Str("ticker", symbol).Msg("live price unavailable")
		return Unavailable()
	}
	if !value.IsPositive() {
		logger.Warn().Str("ticker", symbol).Str("price", value.String()).Msg("ignoring non-positive live price")
		return Unavailable()
	}
	return NewPrice(value)
}
