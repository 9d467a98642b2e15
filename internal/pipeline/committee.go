package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equity-analyst/internal/fetcher"
	"equity-analyst/internal/report"
)

// Producer runs the analysis for one normalized ticker.
type Producer interface {
	Produce(ctx context.Context, ticker string) (report.Output, error)
}

// Committee chains the quant, news and risk roles and asks for a merged JSON verdict.
// Each role sees the output of the roles before it.
type Committee struct {
	llm     LLM
	history fetcher.HistoryFetcher
	news    NewsSearcher
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCommittee wires the roles. history and news may be nil.
func NewCommittee(llm LLM, history fetcher.HistoryFetcher, news NewsSearcher, logger zerolog.Logger) *Committee {
	return &Committee{
		llm:     llm,
		history: history,
		news:    news,
		logger:  logger.With().Str("component", "committee").Logger(),
		now:     time.Now,
	}
}

const (
	quantSystem = "You are a senior quant researcher at a Mumbai firm. You are precise and only report what the data supports."
	newsSystem  = "You are an expert financial journalist covering Indian equities. You scan Moneycontrol, Economic Times and Mint for earnings, scandals and regulatory news."
	riskSystem  = "You are a cynical veteran chief risk officer at a top Indian bank. You believe every investment hides a trap and look for regulatory, promoter and macro-economic threats."
	chairSystem = "You chair an investment committee. You merge analyst notes into one decision and answer with JSON only."
)

// Produce runs every role in order. Role failures abort the run; a final answer
// that is not valid JSON is returned as raw text.
func (c *Committee) Produce(ctx context.Context, ticker string) (report.Output, error) {
	if c.llm == nil {
		return report.Output{}, errors.New("no language model configured")
	}
	started := c.now()

	brief, err := technicalBrief(ctx, c.history, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return report.Output{}, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("price history unavailable for technicals")
	}

	quant, err := c.ask(ctx, "quant", Prompt{
		System: quantSystem,
		User: fmt.Sprintf("Fetch technicals for %s.\n\n%s\nReport price, RSI and MA20 and state whether the technical picture is Bullish, Bearish or Neutral.",
			ticker, brief),
	})
	if err != nil {
		return report.Output{}, err
	}

	articles := c.searchNews(ctx, ticker)
	news, err := c.ask(ctx, "news", Prompt{
		System: newsSystem,
		User: fmt.Sprintf("Summarise news for %s from the last 7 days.\n\nTechnical context:\n%s\n\nSearch results:\n%s\nGive a 3-bullet summary of catalysts and a sentiment score from 0 (very negative) to 10 (very positive).",
			ticker, quant, formatArticles(articles)),
	})
	if err != nil {
		return report.Output{}, err
	}

	risk, err := c.ask(ctx, "risk", Prompt{
		System: riskSystem,
		User: fmt.Sprintf("Critique the reports for %s and find 3 specific threats the analysts may be too optimistic about.\n\nQuant report:\n%s\n\nNews report:\n%s\nReturn a risk disclosure and a confidence score.",
			ticker, quant, news),
	})
	if err != nil {
		return report.Output{}, err
	}

	final, err := c.ask(ctx, "chair", Prompt{
		System: chairSystem,
		User:   chairPrompt(ticker, quant, news, risk),
		JSON:   true,
	})
	if err != nil {
		return report.Output{}, err
	}

	out := ParseOutput(ticker, final, c.now())
	c.logger.Info().
		Str("ticker", ticker).
		Bool("structured", out.IsStructured()).
		Dur("elapsed", c.now().Sub(started)).
		Msg("committee finished")
	return out, nil
}

func (c *Committee) ask(ctx context.Context, role string, p Prompt) (string, error) {
	text, err := c.llm.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%s role: %w", role, err)
	}
	c.logger.Debug().Str("role", role).Int("length", len(text)).Msg("role answered")
	return strings.TrimSpace(text), nil
}

func (c *Committee) searchNews(ctx context.Context, ticker string) []Article {
	if c.news == nil {
		return nil
	}
	query := strings.TrimSuffix(strings.TrimSuffix(ticker, ".NS"), ".BO") + " share news"
	articles, err := c.news.Search(ctx, query)
	if err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("news search failed; continuing without articles")
		return nil
	}
	return articles
}

func chairPrompt(ticker, quant, news, risk string) string {
	return fmt.Sprintf(`Merge the committee notes for %s into a single JSON object with exactly these keys:
{"technical_signal": "Bullish|Bearish|Neutral", "sentiment_score": <number 0-10>, "catalysts": [<up to 3 strings>], "risks": [<up to 3 strings>], "risk_summary": "<one paragraph>", "recommendation": "<one paragraph>"}

Quant:
%s

News:
%s

Risk:
%s`, ticker, quant, news, risk)
}

// verdict mirrors the JSON the chair is asked for. Scores sometimes arrive quoted.
type verdict struct {
	TechnicalSignal string          `json:"technical_signal"`
	SentimentScore  json.RawMessage `json:"sentiment_score"`
	Catalysts       []string        `json:"catalysts"`
	Risks           []string        `json:"risks"`
	RiskSummary     string          `json:"risk_summary"`
	Recommendation  string          `json:"recommendation"`
}

// ParseOutput extracts a structured report from model text, or wraps the text as raw.
func ParseOutput(ticker, text string, now time.Time) report.Output {
	body := extractJSON(text)
	if body == "" {
		return report.RawText(text)
	}

	var v verdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return report.RawText(text)
	}
	if v.TechnicalSignal == "" && v.Recommendation == "" {
		return report.RawText(text)
	}

	return report.Structured(report.Report{
		Ticker:          ticker,
		TechnicalSignal: report.Signal(v.TechnicalSignal),
		SentimentScore:  parseScore(v.SentimentScore),
		Catalysts:       v.Catalysts,
		Risks:           v.Risks,
		RiskSummary:     v.RiskSummary,
		Recommendation:  v.Recommendation,
		GeneratedAt:     now.UTC(),
	})
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return report.NeutralSentiment
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "/10"))
		if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
			return f
		}
	}
	return report.NeutralSentiment
}

// Unavailable is a Producer that always fails with the configured reason.
type Unavailable struct {
	Reason error
}

// Produce reports the configuration problem as a job failure.
func (u Unavailable) Produce(ctx context.Context, ticker string) (report.Output, error) {
	return report.Output{}, fmt.Errorf("analysis pipeline unavailable: %w", u.Reason)
}

var (
	_ Producer = (*Committee)(nil)
	_ Producer = Unavailable{}
)
