package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func chartServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v8/finance/chart/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestYahoo(baseURL string) *Yahoo {
	return NewYahoo(YahooOptions{BaseURL: baseURL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
}

func TestYahooFetchPriceSuccess(t *testing.T) {
	srv := chartServer(t, http.StatusOK, map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{"symbol": "TCS.NS", "regularMarketPrice": 3850.5},
			}},
			"error": nil,
		},
	})

	price, err := newTestYahoo(srv.URL).FetchPrice(context.Background(), "TCS.NS")
	if err != nil {
		t.Fatalf("FetchPrice returned error: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(3850.5)) {
		t.Fatalf("expected 3850.5, got %s", price)
	}
}

func TestYahooFetchPriceAPIError(t *testing.T) {
	srv := chartServer(t, http.StatusNotFound, map[string]any{
		"chart": map[string]any{
			"result": nil,
			"error":  map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"},
		},
	})

	_, err := newTestYahoo(srv.URL).FetchPrice(context.Background(), "NOPE.NS")
	if err == nil || !strings.Contains(err.Error(), "delisted") {
		t.Fatalf("expected delisted error, got %v", err)
	}
}

func TestYahooFetchPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("Too Many Requests"))
	}))
	defer srv.Close()

	if _, err := newTestYahoo(srv.URL).FetchPrice(context.Background(), "TCS.NS"); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestYahooFetchClosesSkipsNulls(t *testing.T) {
	srv := chartServer(t, http.StatusOK, map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta":       map[string]any{"symbol": "TCS.NS", "regularMarketPrice": 12.0},
				"timestamp":  []int64{1, 2, 3},
				"indicators": map[string]any{"quote": []any{map[string]any{"close": []any{10.0, nil, 12.0}}}},
			}},
		},
	})

	closes, err := newTestYahoo(srv.URL).FetchCloses(context.Background(), "TCS.NS", "1mo")
	if err != nil {
		t.Fatalf("FetchCloses returned error: %v", err)
	}
	if len(closes) != 2 || closes[0] != 10 || closes[1] != 12 {
		t.Fatalf("unexpected closes %v", closes)
	}
}

func TestYahooMissingSymbol(t *testing.T) {
	if _, err := newTestYahoo("http://localhost").FetchPrice(context.Background(), " "); err == nil {
		t.Fatal("empty symbol should error")
	}
}

type stubPrices struct {
	value decimal.Decimal
	err   error
}

func (s stubPrices) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.value, s.err
}

func TestBestEffort(t *testing.T) {
	ctx := context.Background()

	if p := BestEffort(ctx, stubPrices{err: errors.New("boom")}, "A.NS", noopLogger()); p.Available {
		t.Fatal("errors must map to Unavailable")
	}
	if p := BestEffort(ctx, stubPrices{value: decimal.Zero}, "A.NS", noopLogger()); p.Available {
		t.Fatal("zero price must map to Unavailable")
	}
	if p := BestEffort(ctx, nil, "A.NS", noopLogger()); p.Available {
		t.Fatal("nil fetcher must map to Unavailable")
	}
	p := BestEffort(ctx, stubPrices{value: decimal.NewFromInt(5)}, "A.NS", noopLogger())
	if !p.Available || !p.Value.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected price %+v", p)
	}
	if !Unavailable().OrZero().IsZero() {
		t.Fatal("OrZero of unavailable must be zero")
	}
}
