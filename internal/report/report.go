package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Signal is the technical stance of a report.
type Signal string

const (
	SignalBullish Signal = "Bullish"
	SignalBearish Signal = "Bearish"
	SignalNeutral Signal = "Neutral"
	SignalUnknown Signal = "Unknown"
)

const (
	// MaxItems bounds the catalyst and risk lists.
	MaxItems = 3

	MinSentiment     = 0.0
	MaxSentiment     = 10.0
	NeutralSentiment = 5.0

	// ManualReview prefixes the recommendation of a degraded report.
	ManualReview = "Manual review required: the analysis committee did not return a structured report."
)

// ParseSignal maps free-form text onto a Signal; anything unrecognised is Unknown.
func ParseSignal(v string) Signal {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bullish", "buy", "positive":
		return SignalBullish
	case "bearish", "sell", "negative":
		return SignalBearish
	case "neutral", "hold":
		return SignalNeutral
	default:
		return SignalUnknown
	}
}

// Report is the merged committee output for one ticker.
type Report struct {
	Ticker          string    `json:"ticker"`
	TechnicalSignal Signal    `json:"technical_signal"`
	SentimentScore  float64   `json:"sentiment_score"`
	Catalysts       []string  `json:"catalysts"`
	Risks           []string  `json:"risks"`
	RiskSummary     string    `json:"risk_summary"`
	Recommendation  string    `json:"recommendation"`
	Degraded        bool      `json:"degraded"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Marshal serialises the report for storage.
func Marshal(r Report) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored report.
func Unmarshal(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return r, nil
}

// Output is the pipeline result: either a structured report or raw text.
type Output struct {
	structured *Report
	raw        string
}

// Structured wraps a well-formed report.
func Structured(r Report) Output {
	return Output{structured: &r}
}

// RawText wraps unstructured pipeline output.
func RawText(text string) Output {
	return Output{raw: text}
}

// IsStructured reports whether the pipeline produced structured fields.
func (o Output) IsStructured() bool { return o.structured != nil }

// Text returns the raw text carried by a RawText output.
func (o Output) Text() string { return o.raw }

// Normalize converts any pipeline output into a field-complete Report.
// Structured output is sanitised; raw text becomes a degraded report.
func Normalize(ticker string, out Output, now time.Time) Report {
	if out.structured == nil {
		return Degraded(ticker, out.raw, now)
	}

	r := *out.structured
	r.Ticker = ticker
	r.TechnicalSignal = ParseSignal(string(r.TechnicalSignal))
	r.SentimentScore = clampSentiment(r.SentimentScore)
	r.Catalysts = boundItems(r.Catalysts)
	r.Risks = boundItems(r.Risks)
	if r.RiskSummary == "" && len(r.Risks) > 0 {
		r.RiskSummary = strings.Join(r.Risks, ". ")
	}
	r.Degraded = false
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = now.UTC()
	}
	return r
}

// Degraded builds the sentinel report used when the pipeline returned plain text.
func Degraded(ticker, raw string, now time.Time) Report {
	return Report{
		Ticker:          ticker,
		TechnicalSignal: SignalUnknown,
		SentimentScore:  NeutralSentiment,
		Catalysts:       []string{},
		Risks:           []string{},
		RiskSummary:     strings.TrimSpace(raw),
		Recommendation:  ManualReview,
		Degraded:        true,
		GeneratedAt:     now.UTC(),
	}
}

func clampSentiment(v float64) float64 {
	if math.IsNaN(v) {
		return NeutralSentiment
	}
	return math.Max(MinSentiment, math.Min(MaxSentiment, v))
}

func boundItems(items []string) []string {
	out := make([]string, 0, MaxItems)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxItems {
			break
		}
	}
	return out
}
