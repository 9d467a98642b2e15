package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"equity-analyst/internal/config"
)

// GeminiClient completes prompts through the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       retrier
	logger      zerolog.Logger
}

// NewGeminiClient constructs a Gemini client from pipeline settings.
func NewGeminiClient(ctx context.Context, apiKey string, cfg config.PipelineConfig, logger zerolog.Logger) (*GeminiClient, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	logger = logger.With().Str("component", "gemini").Logger()
	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		retry:       retrier{maxRetries: cfg.MaxRetries, backoff: 2 * time.Second, logger: logger},
		logger:      logger,
	}, nil
}

// Complete sends the prompt and returns the aggregated response text.
func (g *GeminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.temperature)),
	}
	if g.maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.maxTokens)
	}
	if p.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	return g.retry.do(ctx, func(ctx context.Context) (string, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), genCfg)
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", fmt.Errorf("empty response from gemini")
		}
		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("empty text in gemini response")
		}
		return text, nil
	})
}

var _ LLM = (*GeminiClient)(nil)
