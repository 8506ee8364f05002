package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// DiscordNotifier posts an embed to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	explorer   string
	client     *http.Client
	logger     zerolog.Logger
}

// NewDiscordNotifier builds a webhook notifier. explorer is the transaction URL prefix used for links.
func NewDiscordNotifier(webhookURL, explorer string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DiscordNotifier{
		webhookURL: webhookURL,
		explorer:   explorer,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Name implements Notifier.
func (n *DiscordNotifier) Name() string { return "discord" }

// Notify posts one embed. HTTP 429 is reported as ErrRateLimited.
func (n *DiscordNotifier) Notify(ctx context.Context, rec mempool.Record) error {
	body, err := json.Marshal(renderDiscord(rec, n.explorer))
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: discord retry-after %q", ErrRateLimited, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	n.logger.Info().
		Str("tx", rec.Hash.Hex()).
		Str("method", rec.Method).
		Msg("alert sent (discord)")
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
