package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-analyst/internal/report"
	"equity-analyst/internal/service"
	"equity-analyst/internal/ticker"
)

type stubAnalyzer struct {
	cached   map[string]report.Report
	statuses map[string]service.Status
	lastRaw  string
}

func (s *stubAnalyzer) HandleRequest(ctx context.Context, raw string) (service.Outcome, error) {
	s.lastRaw = raw
	sym, err := ticker.NewNormalizer(".NS").Normalize(raw)
	if err != nil {
		return service.Outcome{}, err
	}
	if rep, ok := s.cached[sym.String()]; ok {
		return service.Outcome{Ticker: sym.String(), Report: &rep, Source: service.SourceCache}, nil
	}
	return service.Outcome{Ticker: sym.String(), JobID: "job-123"}, nil
}

func (s *stubAnalyzer) Poll(id string) service.Status {
	if st, ok := s.statuses[id]; ok {
		return st
	}
	return service.Status{Status: service.StatusNotFound}
}

func newTestServer(a *stubAnalyzer) http.Handler {
	return New(Options{Mode: gin.TestMode}, a, zerolog.Nop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec.Code, payload
}

func TestAnalyzeStartsJob(t *testing.T) {
	a := &stubAnalyzer{}
	code, payload := do(t, newTestServer(a), http.MethodPost, "/analyze", `{"ticker":"tcs"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"job_id": "job-123", "status": "started"}, payload)
	assert.Equal(t, "tcs", a.lastRaw)
}

func TestAnalyzeServesCache(t *testing.T) {
	a := &stubAnalyzer{cached: map[string]report.Report{
		"TCS.NS": {Ticker: "TCS.NS", TechnicalSignal: report.SignalBullish, SentimentScore: 7},
	}}
	code, payload := do(t, newTestServer(a), http.MethodPost, "/analyze", `{"ticker":"TCS.NS"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", payload["status"])
	assert.Equal(t, "cache", payload["source"])
	assert.NotContains(t, payload, "job_id")
	result := payload["result"].(map[string]any)
	assert.Equal(t, "Bullish", result["technical_signal"])
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	h := newTestServer(&stubAnalyzer{})

	for _, body := range []string{`not json`, `{}`, `{"ticker":"   "}`} {
		code, payload := do(t, h, http.MethodPost, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.NotEmpty(t, payload["error"], body)
	}
}

func TestStatusShapes(t *testing.T) {
	a := &stubAnalyzer{statuses: map[string]service.Status{
		"p": {Status: service.StatusPending},
		"c": {Status: service.StatusCompleted, Result: &report.Report{Ticker: "A.NS"}},
		"f": {Status: service.StatusFailed, Error: "upstream unreachable"},
	}}
	h := newTestServer(a)

	code, payload := do(t, h, http.MethodGet, "/status/p", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "pending"}, payload)

	_, payload = do(t, h, http.MethodGet, "/status/c", "")
	assert.Equal(t, "completed", payload["status"])
	assert.Equal(t, "A.NS", payload["result"].(map[string]any)["ticker"])

	_, payload = do(t, h, http.MethodGet, "/status/f", "")
	assert.Equal(t, map[string]any{"status": "failed", "error": "upstream unreachable"}, payload)

	code, payload = do(t, h, http.MethodGet, "/status/unknown", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "not_found"}, payload)
}

func TestRoot(t *testing.T) {
	code, payload := do(t, newTestServer(&stubAnalyzer{}), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, payload, "message")
	assert.Contains(t, payload, "version")
}
