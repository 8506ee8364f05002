package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// ConsoleNotifier writes each record as a structured log line.
type ConsoleNotifier struct {
	logger zerolog.Logger
}

// NewConsoleNotifier logs alerts through logger.
func NewConsoleNotifier(logger zerolog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger.With().Str("component", "alert_console").Logger()}
}

// Name implements Notifier.
func (n *ConsoleNotifier) Name() string { return "console" }

// Notify never fails.
func (n *ConsoleNotifier) Notify(_ context.Context, rec mempool.Record) error {
	event := n.logger.Info().
		Str("tx", rec.Hash.Hex()).
		Str("from", rec.From.Hex()).
		Str("to", destination(rec)).
		Str("method", rec.Method).
		Str("value_eth", FormatWei(rec.EffectiveValue))
	if len(rec.Params.Path) > 0 {
		event = event.Int("path_len", len(rec.Params.Path))
	}
	event.Msg("mempool hit")
	return nil
}

var _ Notifier = (*ConsoleNotifier)(nil)
