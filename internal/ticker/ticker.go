package ticker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DefaultSuffix is appended to symbols that carry no exchange suffix.
const DefaultSuffix = ".NS"

// ErrEmpty is returned when the raw ticker carries no symbol code.
var ErrEmpty = errors.New("ticker: symbol is empty")

// ErrMalformed is returned for inputs with inner whitespace or stray separators.
var ErrMalformed = errors.New("ticker: malformed symbol")

// ErrUnknownExchange is returned for an EXCHANGE:CODE prefix not in ExchangeSuffixes.
var ErrUnknownExchange = errors.New("ticker: unknown exchange prefix")

// ExchangeSuffixes maps exchange prefixes (EXCHANGE:CODE) to market suffixes.
var ExchangeSuffixes = map[string]string{
	"NSE": ".NS",
	"BSE": ".BO",
}

// Symbol is a normalized ticker, e.g. "TCS.NS".
type Symbol string

// String returns the normalized form.
func (s Symbol) String() string { return string(s) }

// Code returns the symbol without its market suffix.
func (s Symbol) Code() string {
	if idx := strings.LastIndex(string(s), "."); idx > 0 {
		return string(s[:idx])
	}
	return string(s)
}

// Normalizer turns user input into a Symbol.
type Normalizer struct {
	suffix string
}

// NewNormalizer builds a normalizer appending suffix when none is present.
func NewNormalizer(suffix string) Normalizer {
	suffix = strings.ToUpper(strings.TrimSpace(suffix))
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return Normalizer{suffix: suffix}
}

// Normalize upper-cases raw and applies the suffix convention.
//
// Accepted forms:
//   - "tcs"      -> "TCS.NS" (default suffix)
//   - "TCS.NS"   -> "TCS.NS"
//   - "NSE:TCS"  -> "TCS.NS"
//   - "bse:tcs"  -> "TCS.BO"
func (n Normalizer) Normalize(raw string) (Symbol, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrEmpty
	}
	if strings.ContainsFunc(raw, unicode.IsSpace) {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrMalformed, raw)
	}

	var sym Symbol
	if exchange, code, found := strings.Cut(raw, ":"); found {
		if exchange == "" || strings.Contains(code, ":") {
			return "", fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		suffix, ok := ExchangeSuffixes[exchange]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownExchange, exchange)
		}
		sym = Symbol(stripSuffix(code) + suffix)
	} else {
		sym = n.withSuffix(raw)
	}

	if code := sym.Code(); code == "" || strings.HasPrefix(string(sym), ".") {
		return "", ErrEmpty
	}
	return sym, nil
}

func (n Normalizer) withSuffix(raw string) Symbol {
	if !strings.Contains(raw, ".") {
		return Symbol(raw + n.suffix)
	}
	if strings.HasSuffix(raw, ".") {
		return Symbol(strings.TrimRight(raw, ".") + n.suffix)
	}
	return Symbol(raw)
}

func stripSuffix(code string) string {
	if idx := strings.LastIndex(code, "."); idx > 0 {
		return code[:idx]
	}
	return code
}
