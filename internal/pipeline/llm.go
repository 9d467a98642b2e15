package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"equity-analyst/internal/config"
)

const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"

	defaultClaudeModel = "claude-sonnet-4-20250514"
	defaultGeminiModel = "gemini-2.5-flash"
)

// ErrNoAPIKey is returned when no credential is configured for the provider.
var ErrNoAPIKey = errors.New("pipeline api key not configured")

// Prompt is a single-turn request to a language model.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider to return a bare JSON document where supported.
	JSON bool
}

// LLM completes prompts.
type LLM interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// NewLLM builds the configured provider client. The API key falls back to the
// provider's conventional environment variable.
func NewLLM(ctx context.Context, cfg config.PipelineConfig, logger zerolog.Logger) (LLM, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderClaude
	}

	apiKey := cfg.APIKey
	switch provider {
	case ProviderClaude:
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrNoAPIKey)
		}
		return NewClaudeClient(apiKey, cfg, logger), nil
	case ProviderGemini:
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrNoAPIKey)
		}
		client, err := NewGeminiClient(ctx, apiKey, cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown pipeline provider %q", cfg.Provider)
	}
}

// retrier repeats a provider call with linear backoff.
type retrier struct {
	maxRetries int
	backoff    time.Duration
	logger     zerolog.Logger
}

func (r retrier) do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		text, err := call(ctx)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * r.backoff
		r.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("retrying model call")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", fmt.Errorf("model call failed after %d retries: %w", r.maxRetries, lastErr)
}
