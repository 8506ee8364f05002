package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CollectFunc gathers the current cumulative counters.
type CollectFunc func() Sample

// Reporter records a sample per tick and logs the interval's activity.
type Reporter struct {
	collect CollectFunc
	series  *Series
	logger  zerolog.Logger
}

// NewReporter builds a Reporter appending to series.
func NewReporter(collect CollectFunc, series *Series, logger zerolog.Logger) *Reporter {
	return &Reporter{
		collect: collect,
		series:  series,
		logger:  logger.With().Str("component", "stats").Logger(),
	}
}

// Tick matches scheduler.TickFunc.
func (r *Reporter) Tick(_ context.Context, at time.Time) error {
	sample := r.collect()
	sample.At = at

	prev, hasPrev := r.series.Last()
	r.series.Append(sample)

	delta := sample
	if hasPrev {
		delta = sample.Delta(prev)
	}

	r.logger.Info().
		Uint64("received", delta.Received).
		Uint64("evicted", delta.Evicted).
		Uint64("dispatched", delta.Dispatched).
		Uint64("fetch_failed", delta.FetchFailed).
		Uint64("delivered", delta.Delivered).
		Uint64("rate_limited", delta.RateLimited).
		Uint64("delivery_failed", delta.DeliveryFailed).
		Int("queue_depth", sample.QueueDepth).
		Int64("in_flight", sample.InFlight).
		Msg("pipeline stats")
	return nil
}

// Series returns the recorded samples.
func (r *Reporter) Series() *Series {
	return r.series
}
