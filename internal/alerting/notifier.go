package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notification describes a finished analysis job.
type Notification struct {
	JobID          string
	Ticker         string
	Status         string
	Signal         string
	SentimentScore float64
	Recommendation string
	Degraded       bool
	Error          string
	Elapsed        time.Duration
}

// Notifier delivers job notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with a plain-text summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("job_id", note.JobID).
		Str("ticker", note.Ticker).
		Str("status", note.Status).
		Msg("notification sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Equity Analysis] %s %s\n", note.Ticker, strings.ToUpper(note.Status)))
	builder.WriteString(fmt.Sprintf("Job: %s\n", note.JobID))
	if note.Error != "" {
		builder.WriteString(fmt.Sprintf("Error: %s\n", note.Error))
	} else {
		builder.WriteString(fmt.Sprintf("Signal: %s\n", note.Signal))
		builder.WriteString(fmt.Sprintf("Sentiment: %.1f/10\n", note.SentimentScore))
		if note.Degraded {
			builder.WriteString("Report is degraded (unstructured committee output)\n")
		}
		if note.Recommendation != "" {
			builder.WriteString(fmt.Sprintf("Recommendation: %s\n", note.Recommendation))
		}
	}
	if note.Elapsed > 0 {
		builder.WriteString(fmt.Sprintf("Elapsed: %s\n", note.Elapsed.Round(time.Second)))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
