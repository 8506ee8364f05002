package pipeline

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"mempool-sniper/internal/fetcher"
	"mempool-sniper/internal/mempool"
)

// work owns one hash from fetch to delivery. Nothing it does reaches the governor
// except the permit release.
func (g *Governor) work(ctx context.Context, hash mempool.RawEvent) {
	stage := "fetch"
	defer func() {
		if r := recover(); r != nil {
			g.counts.panics.Add(1)
			g.logger.Error().
				Str("tx", hash.Hex()).
				Str("stage", stage).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("worker panicked")
		}
		g.counts.inFlight.Add(-1)
		g.sem.Release(1)
		g.wg.Done()
	}()

	start := time.Now()
	payload, err := g.fetcher.Fetch(ctx, hash)
	if g.observer != nil {
		g.observer.ObserveFetch(time.Since(start), err)
	}
	if err != nil {
		g.counts.fetchFailed.Add(1)
		g.fetchFailureEvent(err).
			Err(err).
			Str("tx", hash.Hex()).
			Str("stage", stage).
			Msg("event dropped")
		return
	}

	stage = "classify"
	rec := g.classifier.Classify(payload)
	g.counts.classified.Add(1)
	if g.observer != nil {
		g.observer.ObserveClassified(rec.Method)
	}

	stage = "deliver"
	outcome := g.sink.Deliver(ctx, rec)
	switch outcome {
	case mempool.OutcomeDelivered:
		g.counts.delivered.Add(1)
	case mempool.OutcomeRateLimited:
		g.counts.rateLimited.Add(1)
	default:
		g.counts.deliveryFailed.Add(1)
	}

	g.logger.Debug().
		Str("tx", hash.Hex()).
		Str("method", rec.Method).
		Str("outcome", outcome.String()).
		Dur("elapsed", time.Since(start)).
		Msg("event processed")
}

// A hash that disappeared before lookup is routine in the mempool.
func (g *Governor) fetchFailureEvent(err error) *zerolog.Event {
	if errors.Is(err, fetcher.ErrNotFound) {
		return g.logger.Debug()
	}
	return g.logger.Warn()
}
