package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equity-analyst/internal/report"
)

// Outcome classifies how an analysis request ended for the caller.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeNotFound  Outcome = "not_found"
	// OutcomeGaveUp means the attempt budget ran out while the job was still pending.
	OutcomeGaveUp Outcome = "gave_up"
)

// Options configure the poll loop.
type Options struct {
	BaseURL      string
	PollInterval time.Duration
	MaxAttempts  int
	Timeout      time.Duration
}

// Client submits tickers and polls until a terminal status.
type Client struct {
	opts   Options
	http   *http.Client
	logger zerolog.Logger
}

// Result is what the caller eventually sees.
type Result struct {
	Outcome  Outcome
	Ticker   string
	JobID    string
	Source   string
	Report   *report.Report
	Error    string
	Attempts int
}

type analyzeResponse struct {
	Status string         `json:"status"`
	JobID  string         `json:"job_id"`
	Result *report.Report `json:"result"`
	Source string         `json:"source"`
	Error  string         `json:"error"`
}

type statusResponse struct {
	Status string         `json:"status"`
	Result *report.Report `json:"result"`
	Error  string         `json:"error"`
}

// New constructs a client.
func New(opts Options, logger zerolog.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 60
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		opts:   opts,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "client").Logger(),
	}
}

// Analyze submits the ticker and, when a job starts, waits for it.
func (c *Client) Analyze(ctx context.Context, ticker string) (Result, error) {
	body, err := json.Marshal(map[string]string{"ticker": ticker})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	var resp analyzeResponse
	status, err := c.call(ctx, http.MethodPost, "/analyze", body, &resp)
	if err != nil {
		return Result{}, err
	}
	if status != http.StatusOK {
		return Result{}, fmt.Errorf("analyze rejected (%d): %s", status, resp.Error)
	}

	switch resp.Status {
	case "completed":
		return Result{Outcome: OutcomeCompleted, Ticker: ticker, Source: resp.Source, Report: resp.Result}, nil
	case "started":
		c.logger.Info().Str("ticker", ticker).Str("job_id", resp.JobID).Msg("analysis started; polling")
		res, err := c.Wait(ctx, resp.JobID)
		res.Ticker = ticker
		return res, err
	default:
		return Result{}, fmt.Errorf("unexpected analyze status %q", resp.Status)
	}
}

// Wait polls the job until it is terminal or the attempt budget is spent.
// Transport errors consume an attempt but do not abort the loop.
func (c *Client) Wait(ctx context.Context, jobID string) (Result, error) {
	res := Result{JobID: jobID}
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt

		var st statusResponse
		_, err := c.call(ctx, http.MethodGet, "/status/"+jobID, nil, &st)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Str("job_id", jobID).Msg("status poll failed")
		case st.Status == "completed":
			res.Outcome = OutcomeCompleted
			res.Report = st.Result
			return res, nil
		case st.Status == "failed":
			res.Outcome = OutcomeFailed
			res.Error = st.Error
			return res, nil
		case st.Status == "not_found":
			res.Outcome = OutcomeNotFound
			return res, nil
		default:
			c.logger.Debug().Int("attempt", attempt).Str("job_id", jobID).Msg("job still pending")
		}

		if attempt == c.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(c.opts.PollInterval):
		}
	}

	res.Outcome = OutcomeGaveUp
	return res, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
