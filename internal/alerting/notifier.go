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

// Notification describes a market-state transition between runs.
type Notification struct {
	Date      string
	FromLabel string
	ToLabel   string
	Changes   []string
}

// Notifier delivers state-transition notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, apiBase string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(apiBase, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  base,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "telegram_notifier").Logger(),
	}
}

// Notify sends the transition summary as a single message.
func (t *TelegramNotifier) Notify(ctx context.Context, notification Notification) error {
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    formatMessage(notification),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if !apiResp.OK {
		if apiResp.Description != "" {
			return fmt.Errorf("telegram api: %s", apiResp.Description)
		}
		return fmt.Errorf("telegram api returned ok=false (status %d)", resp.StatusCode)
	}

	t.logger.Info().Str("date", notification.Date).Str("to", notification.ToLabel).Msg("transition notified")
	return nil
}

func formatMessage(n Notification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market state %s: %s -> %s", n.Date, n.FromLabel, n.ToLabel)
	if len(n.Changes) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(n.Changes, "; "))
	}
	return sb.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
