package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	chartPath       = "/v8/finance/chart/"
	defaultYahooURL = "https://query1.finance.yahoo.com"
	defaultAgent    = "equity-analyst/1.0"
)

// YahooOptions parameterise the Yahoo Finance chart fetcher.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
}

// Yahoo reads quotes and daily closes from the Yahoo Finance chart API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewYahoo constructs a chart API fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYahooURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "price_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		baseURL: baseURL,
	}
}

// FetchPrice returns the regular market price reported in the chart metadata.
func (y *Yahoo) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	res, err := y.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if res.Meta.RegularMarketPrice == nil {
		return decimal.Decimal{}, fmt.Errorf("yahoo chart %s: missing regularMarketPrice", symbol)
	}
	return decimal.NewFromFloat(*res.Meta.RegularMarketPrice), nil
}

// FetchCloses returns daily closes over period (e.g. "1mo"), skipping null bars.
func (y *Yahoo) FetchCloses(ctx context.Context, symbol string, period string) ([]float64, error) {
	if period == "" {
		period = "1mo"
	}
	res, err := y.chart(ctx, symbol, period, "1d")
	if err != nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no quote series", symbol)
	}

	closes := make([]float64, 0, len(res.Indicators.Quote[0].Close))
	for _, c := range res.Indicators.Quote[0].Close {
		if c != nil {
			closes = append(closes, *c)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no data found", symbol)
	}
	return closes, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol, period, interval string) (*chartResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol is required")
	}
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("range", period)
	params.Set("interval", interval)
	endpoint := y.baseURL + chartPath + url.PathEscape(symbol) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultAgent)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var body chartResponse
	if jsonErr := json.Unmarshal(payload, &body); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, parseHTTPError(resp.StatusCode, payload)
		}
		return nil, fmt.Errorf("decode chart response: %w", jsonErr)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error (%d): %s", resp.StatusCode, body.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	if len(body.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: empty result", symbol)
	}

	y.logger.Debug().Str("ticker", symbol).Str("range", period).Msg("chart fetched")
	return &body.Chart.Result[0], nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		Currency           string   `json:"currency"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func parseHTTPError(status int, payload []byte) error {
	if len(payload) > 0 {
		return fmt.Errorf("yahoo api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("yahoo api error (%d)", status)
}

var (
	_ PriceFetcher   = (*Yahoo)(nil)
	_ HistoryFetcher = (*Yahoo)(nil)
)
