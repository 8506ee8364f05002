package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"mempool-sniper/internal/alerting"
	"mempool-sniper/internal/config"
	"mempool-sniper/internal/metrics"
)

// newSink builds one rate-limited sink per configured channel. A single channel is returned unwrapped.
func (a *App) newSink(ctx context.Context, recorder *metrics.Recorder) (alerting.Sink, []io.Closer, error) {
	var (
		sinks   alerting.Fanout
		closers []io.Closer
	)

	for _, ch := range a.Config.Alerting.Channels {
		n, err := a.newNotifier(ctx, ch)
		if err != nil {
			closeAll(closers, a.Logger)
			return nil, nil, fmt.Errorf("init %s channel: %w", ch, err)
		}
		if c, ok := n.(io.Closer); ok {
			closers = append(closers, c)
		}

		var opts []alerting.SinkOption
		if recorder != nil {
			opts = append(opts, alerting.WithObserver(recorder))
		}
		sinks = append(sinks, alerting.NewRateLimitedSink(n, a.Config.Alerting.RateLimitFor(ch), a.Logger, opts...))
	}

	if len(sinks) == 1 {
		return sinks[0], closers, nil
	}
	return sinks, closers, nil
}

func (a *App) newNotifier(ctx context.Context, channel string) (alerting.Notifier, error) {
	cfg := a.Config.Alerting
	explorer := a.Config.Ethereum.ExplorerTxURL

	switch channel {
	case config.ChannelDiscord:
		return alerting.NewDiscordNotifier(cfg.Discord.WebhookURL, explorer, cfg.Discord.Timeout, a.Logger), nil
	case config.ChannelTelegram:
		t := cfg.Telegram
		return alerting.NewTelegramNotifier(t.BotToken, t.ChatID, t.APIBase, explorer, t.Timeout, a.Logger), nil
	case config.ChannelConsole:
		return alerting.NewConsoleNotifier(a.Logger), nil
	case config.ChannelNATS:
		return alerting.DialNATS(alerting.NATSOptions{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    a.Config.App.Name,
		}, a.Logger)
	case config.ChannelKafka:
		return alerting.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.Logger)
	case config.ChannelRedis:
		return alerting.NewRedisNotifier(ctx, cfg.Redis.URL, cfg.Redis.Stream, cfg.Redis.MaxLen, a.Logger)
	default:
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
}

func closeAll(closers []io.Closer, logger zerolog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("close alert channel")
		}
	}
}
