package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers one event to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to every notifier; one failing channel does not
// keep the others from being tried.
type Multi []Notifier

// Notify calls every notifier and joins their errors.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to the log. Used when no chat channel is
// configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the rendered event at warn level.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Warn().Str("kind", string(event.Kind)).Time("at", event.At).Msg(RenderPlain(event))
	return nil
}

// TelegramNotifier pushes events through the Telegram Bot API.
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

// Notify calls sendMessage with the plain-text rendering.
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderPlain(event),
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

	n.logger.Info().Str("kind", string(event.Kind)).Msg("alert sent (telegram)")
	return nil
}

// Render formats an event as a Discord markdown line.
func Render(event Event) string {
	switch event.Kind {
	case KindUnreachable:
		return "🚫 **Bitaxe API unreachable!** Please check the connection."
	case KindNewBestDifficulty:
		return fmt.Sprintf("🎉 **New best difficulty reached:** %s", event.BestDiff)
	case KindFallbackActivated:
		msg := "⚠️ **Warning:** the miner is currently using the fallback stratum!"
		if event.Pool != "" {
			msg += fmt.Sprintf(" (`%s`)", event.Pool)
		}
		return msg
	case KindLowHashrate:
		return fmt.Sprintf("⚠️ **Warning:** hashrate is low: %.2f MH/s!", event.HashRate)
	case KindHashrateRecovered:
		return fmt.Sprintf("✅ **All clear:** hashrate stable again at %.2f MH/s.", event.HashRate)
	default:
		return fmt.Sprintf("ℹ️ %s", event.Kind)
	}
}

// RenderPlain is Render without markdown emphasis.
func RenderPlain(event Event) string {
	text := strings.ReplaceAll(Render(event), "**", "")
	return strings.ReplaceAll(text, "`", "")
}

var (
	_ Notifier = Multi(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*TelegramNotifier)(nil)
)
