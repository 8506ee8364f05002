package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mempool-sniper/internal/mempool"
)

// RateLimit configures the token bucket in front of one notifier.
type RateLimit struct {
	// PerMinute is the sustained refill rate.
	PerMinute float64 `mapstructure:"per_minute"`
	// Burst is the bucket size and the initial token count.
	Burst int `mapstructure:"burst"`
	// MaxWait bounds how long a delivery may wait for a token. Zero drops on exhaustion.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// Validate reports whether the limit describes a usable bucket.
func (r RateLimit) Validate() error {
	if r.PerMinute <= 0 {
		return fmt.Errorf("per_minute must be positive")
	}
	if r.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}
	if r.MaxWait < 0 {
		return fmt.Errorf("max_wait must not be negative")
	}
	return nil
}

// RateLimitedSink gates one notifier behind a shared token bucket.
type RateLimitedSink struct {
	notifier Notifier
	limiter  *rate.Limiter
	maxWait  time.Duration
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

// SinkOption customises a RateLimitedSink.
type SinkOption func(*RateLimitedSink)

// WithObserver reports every attempt to o.
func WithObserver(o Observer) SinkOption {
	return func(s *RateLimitedSink) {
		s.observer = o
	}
}

// NewRateLimitedSink wraps n with a bucket of limit.Burst tokens refilled at limit.PerMinute.
func NewRateLimitedSink(n Notifier, limit RateLimit, logger zerolog.Logger, opts ...SinkOption) *RateLimitedSink {
	burst := limit.Burst
	if burst <= 0 {
		burst = 1
	}
	s := &RateLimitedSink{
		notifier: n,
		limiter:  rate.NewLimiter(rate.Limit(limit.PerMinute/60), burst),
		maxWait:  limit.MaxWait,
		logger:   logger.With().Str("channel", n.Name()).Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver acquires a token, waiting up to the configured maximum, then notifies once.
func (s *RateLimitedSink) Deliver(ctx context.Context, rec mempool.Record) mempool.Outcome {
	start := s.now()
	reservation := s.limiter.ReserveN(start, 1)
	if !reservation.OK() {
		return s.finish(rec, mempool.OutcomeRateLimited, 0, errors.New("token bucket cannot admit a single event"))
	}

	delay := reservation.DelayFrom(start)
	if delay > s.maxWait {
		reservation.CancelAt(start)
		return s.finish(rec, mempool.OutcomeRateLimited, 0, fmt.Errorf("no token within %s", s.maxWait))
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			reservation.Cancel()
			return s.finish(rec, mempool.OutcomeRateLimited, s.now().Sub(start), ctx.Err())
		case <-timer.C:
		}
	}
	wait := s.now().Sub(start)

	err := s.notifier.Notify(ctx, rec)
	switch {
	case err == nil:
		return s.finish(rec, mempool.OutcomeDelivered, wait, nil)
	case errors.Is(err, ErrRateLimited):
		return s.finish(rec, mempool.OutcomeRateLimited, wait, err)
	default:
		return s.finish(rec, mempool.OutcomeFailed, wait, err)
	}
}

func (s *RateLimitedSink) finish(rec mempool.Record, outcome mempool.Outcome, wait time.Duration, err error) mempool.Outcome {
	if s.observer != nil {
		s.observer.ObserveDelivery(s.notifier.Name(), outcome, wait)
	}

	switch outcome {
	case mempool.OutcomeDelivered:
		s.logger.Debug().
			Str("tx", rec.Hash.Hex()).
			Dur("wait", wait).
			Msg("alert delivered")
	case mempool.OutcomeRateLimited:
		s.logger.Warn().
			Err(err).
			Str("tx", rec.Hash.Hex()).
			Msg("alert dropped by rate limit")
	default:
		s.logger.Error().
			Err(err).
			Str("tx", rec.Hash.Hex()).
			Msg("alert delivery failed")
	}
	return outcome
}

// Fanout delivers to every sink concurrently and reports the worst outcome.
type Fanout []Sink

// Deliver implements Sink.
func (f Fanout) Deliver(ctx context.Context, rec mempool.Record) mempool.Outcome {
	switch len(f) {
	case 0:
		return mempool.OutcomeFailed
	case 1:
		return f[0].Deliver(ctx, rec)
	}

	results := make(chan mempool.Outcome, len(f))
	for _, sink := range f {
		go func(s Sink) {
			results <- s.Deliver(ctx, rec)
		}(sink)
	}

	worst := mempool.OutcomeDelivered
	for range f {
		if outcome := <-results; outcome > worst {
			worst = outcome
		}
	}
	return worst
}

var (
	_ Sink = (*RateLimitedSink)(nil)
	_ Sink = Fanout(nil)
)
