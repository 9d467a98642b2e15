package staleness

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"equity-analyst/internal/fetcher"
	"equity-analyst/internal/storage"
)

// Policy decides whether a stored report may still be served.
type Policy struct {
	MaxAge        time.Duration
	MaxPriceDelta decimal.Decimal
}

// NewPolicy builds a policy; maxPriceDelta is a fraction (0.01 = 1%).
func NewPolicy(maxAge time.Duration, maxPriceDelta float64) Policy {
	return Policy{MaxAge: maxAge, MaxPriceDelta: decimal.NewFromFloat(maxPriceDelta)}
}

// Decision explains an evaluation.
type Decision struct {
	Fresh     bool
	Age       time.Duration
	Deviation decimal.Decimal
	Reason    string
}

// IsFresh reports whether stored is young enough and the price has not drifted.
func (p Policy) IsFresh(stored storage.Record, current fetcher.Price, now time.Time) bool {
	return p.Evaluate(stored, current, now).Fresh
}

// Evaluate applies both the age and the price-drift rule. Missing or
// non-positive prices count as zero drift.
func (p Policy) Evaluate(stored storage.Record, current fetcher.Price, now time.Time) Decision {
	age := now.Sub(stored.Timestamp)
	deviation := Deviation(stored.Price, current)

	if age >= p.MaxAge {
		return Decision{
			Age:       age,
			Deviation: deviation,
			Reason:    fmt.Sprintf("report age %s reached max age %s", age.Round(time.Second), p.MaxAge),
		}
	}

	if deviation.GreaterThanOrEqual(p.MaxPriceDelta) {
		return Decision{
			Age:       age,
			Deviation: deviation,
			Reason:    fmt.Sprintf("price moved %s%% (limit %s%%)", pct(deviation), pct(p.MaxPriceDelta)),
		}
	}

	return Decision{
		Fresh:     true,
		Age:       age,
		Deviation: deviation,
		Reason:    fmt.Sprintf("report is %s old, price moved %s%%", age.Round(time.Second), pct(deviation)),
	}
}

// Deviation returns |current - stored| / stored, or zero when either side is unusable.
func Deviation(stored decimal.Decimal, current fetcher.Price) decimal.Decimal {
	if !current.Available || !current.Value.IsPositive() || !stored.IsPositive() {
		return decimal.Zero
	}
	return current.Value.Sub(stored).Abs().Div(stored)
}

func pct(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(2)
}
