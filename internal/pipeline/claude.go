package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"equity-analyst/internal/config"
)

// ClaudeClient completes prompts through the Anthropic Messages API.
type ClaudeClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	retry       retrier
	logger      zerolog.Logger
}

// NewClaudeClient constructs a Claude client from pipeline settings.
func NewClaudeClient(apiKey string, cfg config.PipelineConfig, logger zerolog.Logger) *ClaudeClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	logger = logger.With().Str("component", "claude").Logger()
	logger.Debug().Str("model", model).Int("max_tokens", maxTokens).Msg("claude client initialised")

	return &ClaudeClient{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry:       retrier{maxRetries: cfg.MaxRetries, backoff: 2 * time.Second, logger: logger},
		logger:      logger,
	}
}

// Complete sends a single user turn and concatenates the text blocks of the reply.
func (c *ClaudeClient) Complete(ctx context.Context, p Prompt) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}

	return c.retry.do(ctx, func(ctx context.Context) (string, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("claude messages: %w", err)
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return "", fmt.Errorf("empty response from claude")
		}
		return text.String(), nil
	})
}

var _ LLM = (*ClaudeClient)(nil)
