package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

// Publisher is the subset of *nats.Conn used for alerts.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes a JSON envelope per record on one subject.
type NATSNotifier struct {
	pub     Publisher
	subject string
	conn    *nats.Conn
	logger  zerolog.Logger
}

// NATSOptions configures DialNATS.
type NATSOptions struct {
	URL           string
	Subject       string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DialNATS connects with infinite reconnects and returns a notifier bound to the connection.
func DialNATS(opts NATSOptions, logger zerolog.Logger) (*NATSNotifier, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.Name == "" {
		opts.Name = "mempool-sniper"
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	log := logger.With().Str("component", "alert_nats").Logger()
	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.Timeout(opts.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	n := NewNATSNotifier(conn, opts.Subject, logger)
	n.conn = conn
	return n, nil
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, subject string, logger zerolog.Logger) *NATSNotifier {
	if subject == "" {
		subject = "mempool.hits"
	}
	return &NATSNotifier{
		pub:     pub,
		subject: subject,
		logger:  logger.With().Str("component", "alert_nats").Logger(),
	}
}

// Name implements Notifier.
func (n *NATSNotifier) Name() string { return "nats" }

// Notify publishes the envelope. NATS publishing is fire-and-forget past the client buffer.
func (n *NATSNotifier) Notify(ctx context.Context, rec mempool.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(newEnvelope(rec))
	if err != nil {
		return fmt.Errorf("marshal nats envelope: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}

	n.logger.Debug().Str("tx", rec.Hash.Hex()).Str("subject", n.subject).Msg("alert published (nats)")
	return nil
}

// Close drains the owned connection, if any.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

var _ Notifier = (*NATSNotifier)(nil)
