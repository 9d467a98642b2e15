package pipeline

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
)

// Article is one news search hit.
type Article struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  string `json:"source"`
}

// NewsSearcher looks up recent coverage for a query.
type NewsSearcher interface {
	Search(ctx context.Context, query string) ([]Article, error)
}

// SerperOptions configure the Serper news client.
type SerperOptions struct {
	BaseURL string
	APIKey  string
	Results int
	Timeout time.Duration
}

// SerperSearch queries the Serper Google News endpoint.
type SerperSearch struct {
	opts   SerperOptions
	client *http.Client
	logger zerolog.Logger
}

// NewSerperSearch returns nil when no API key is configured.
func NewSerperSearch(opts SerperOptions, logger zerolog.Logger) *SerperSearch {
	if opts.APIKey == "" {
		return nil
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://google.serper.dev"
	}
	if opts.Results <= 0 {
		opts.Results = 8
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SerperSearch{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "serper").Logger(),
	}
}

type serperRequest struct {
	Query   string `json:"q"`
	Country string `json:"gl"`
	Num     int    `json:"num"`
	// qdr:w limits results to the past week.
	Range string `json:"tbs"`
}

type serperResponse struct {
	News []Article `json:"news"`
}

// Search returns up to the configured number of articles from the past week.
func (s *SerperSearch) Search(ctx context.Context, query string) ([]Article, error) {
	if s == nil {
		return nil, nil
	}
	body, err := json.Marshal(serperRequest{Query: query, Country: "in", Num: s.opts.Results, Range: "qdr:w"})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	endpoint := strings.TrimRight(s.opts.BaseURL, "/") + "/news"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded serperResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(decoded.News) > s.opts.Results {
		decoded.News = decoded.News[:s.opts.Results]
	}

	s.logger.Debug().Str("query", query).Int("articles", len(decoded.News)).Msg("news search complete")
	return decoded.News, nil
}

func formatArticles(articles []Article) string {
	if len(articles) == 0 {
		return "No recent articles found."
	}
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s", i+1, a.Title)
		if a.Source != "" || a.Date != "" {
			fmt.Fprintf(&b, " (%s, %s)", a.Source, a.Date)
		}
		b.WriteString("\n")
		if a.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", a.Snippet)
		}
	}
	return b.String()
}
