package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"equity-analyst/internal/report"
)

// Record is the latest completed report for a ticker, with the price and
// time it was computed at.
type Record struct {
	Ticker    string
	Price     decimal.Decimal
	Timestamp time.Time
	Report    report.Report
}
