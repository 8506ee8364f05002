// Package pipeline dispatches queued transaction hashes to bounded, fail-open workers.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"mempool-sniper/internal/alerting"
	"mempool-sniper/internal/fetcher"
	"mempool-sniper/internal/intake"
	"mempool-sniper/internal/mempool"
)

// DefaultMaxConcurrent is the permit count used when Options leaves it unset.
const DefaultMaxConcurrent = 50

// Classifier maps a payload to a record. Implementations must be total.
type Classifier interface {
	Classify(p mempool.Payload) mempool.Record
}

// Observer receives per-event stage results.
type Observer interface {
	ObserveFetch(elapsed time.Duration, err error)
	ObserveClassified(method string)
}

// Options tune the governor.
type Options struct {
	// MaxConcurrent bounds the number of workers in flight.
	MaxConcurrent int
	// ShutdownTimeout bounds the wait for in-flight workers once dispatch stops. Zero waits forever.
	ShutdownTimeout time.Duration
}

// Governor pulls hashes from the intake queue and runs one worker per hash under a permit pool.
type Governor struct {
	queue      *intake.Queue[mempool.RawEvent]
	fetcher    fetcher.TransactionFetcher
	classifier Classifier
	sink       alerting.Sink
	observer   Observer
	logger     zerolog.Logger

	permits int
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	counts  counters

	shutdownTimeout time.Duration
}

// Option customises a Governor.
type Option func(*Governor)

// WithObserver reports stage results to o.
func WithObserver(o Observer) Option {
	return func(g *Governor) {
		g.observer = o
	}
}

// New constructs a Governor.
func New(queue *intake.Queue[mempool.RawEvent], f fetcher.TransactionFetcher, c Classifier, sink alerting.Sink, opts Options, logger zerolog.Logger, options ...Option) *Governor {
	permits := opts.MaxConcurrent
	if permits <= 0 {
		permits = DefaultMaxConcurrent
	}

	g := &Governor{
		queue:           queue,
		fetcher:         f,
		classifier:      c,
		sink:            sink,
		logger:          logger.With().Str("component", "governor").Logger(),
		permits:         permits,
		sem:             semaphore.NewWeighted(int64(permits)),
		shutdownTimeout: opts.ShutdownTimeout,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Run dispatches until ctx is cancelled or the queue is closed, then waits for in-flight workers.
// Workers run detached from ctx so their current external calls complete.
func (g *Governor) Run(ctx context.Context) error {
	g.logger.Info().Int("permits", g.permits).Int("queue_capacity", g.queue.Cap()).Msg("dispatch started")

	workCtx := context.WithoutCancel(ctx)
	for {
		hash, err := g.queue.Take(ctx)
		if err != nil {
			break
		}

		if err := g.sem.Acquire(ctx, 1); err != nil {
			g.counts.abandoned.Add(1)
			g.logger.Debug().Str("tx", hash.Hex()).Msg("dispatch stopped before permit was granted")
			break
		}

		g.wg.Add(1)
		g.counts.dispatched.Add(1)
		g.counts.inFlight.Add(1)
		go g.work(workCtx, hash)
	}

	return g.drain()
}

func (g *Governor) drain() error {
	inFlight := g.counts.inFlight.Load()
	g.logger.Info().Int64("in_flight", inFlight).Msg("dispatch stopped, waiting for workers")

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	if g.shutdownTimeout <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(g.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		g.logger.Info().Msg("all workers finished")
		return nil
	case <-timer.C:
		return fmt.Errorf("%d workers still in flight after %s", g.counts.inFlight.Load(), g.shutdownTimeout)
	}
}

// Permits returns the size of the permit pool.
func (g *Governor) Permits() int {
	return g.permits
}

// Stats returns a snapshot of the pipeline counters.
func (g *Governor) Stats() Stats {
	return g.counts.snapshot(g.permits)
}
