// Package source subscribes to the node's pending transaction feed.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"mempool-sniper/internal/mempool"
)

var errQueueClosed = errors.New("intake closed")

// Subscriber is the subset of *gethclient.Client the source needs.
type Subscriber interface {
	SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (*rpc.ClientSubscription, error)
}

// SubscribeFunc starts a pending-hash subscription delivering into ch.
type SubscribeFunc func(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error)

// Dialer opens a fresh subscription endpoint. The returned func releases it.
type Dialer func(ctx context.Context) (SubscribeFunc, func(), error)

// WebSocketDialer dials wsURL with gethclient on every (re)connect.
func WebSocketDialer(wsURL string) Dialer {
	return func(ctx context.Context) (SubscribeFunc, func(), error) {
		client, err := rpc.DialContext(ctx, wsURL)
		if err != nil {
			return nil, nil, err
		}
		return fromSubscriber(gethclient.New(client)), client.Close, nil
	}
}

func fromSubscriber(s Subscriber) SubscribeFunc {
	return func(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
		return s.SubscribePendingTransactions(ctx, ch)
	}
}

// Options tune reconnect behaviour.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ProgressEvery logs a progress line every n hashes. Zero disables it.
	ProgressEvery uint64
	BufferSize    int
}

// Stats counts hashes and reconnects.
type Stats struct {
	Received   uint64
	Reconnects uint64
}

// Source feeds announced hashes into an offer function until stopped.
type Source struct {
	dial   Dialer
	offer  func(mempool.RawEvent) bool
	opts   Options
	logger zerolog.Logger

	received   atomic.Uint64
	reconnects atomic.Uint64
}

// New builds a Source. offer must not block; it returns false once the intake is closed.
func New(dial Dialer, offer func(mempool.RawEvent) bool, opts Options, logger zerolog.Logger) *Source {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = time.Minute
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	return &Source{
		dial:   dial,
		offer:  offer,
		opts:   opts,
		logger: logger.With().Str("component", "source").Logger(),
	}
}

// Run subscribes and resubscribes with exponential backoff until ctx ends or the intake closes.
func (s *Source) Run(ctx context.Context) error {
	b := newBackOff(s.opts.InitialBackoff, s.opts.MaxBackoff)

	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil || errors.Is(err, errQueueClosed) {
			s.logger.Info().Uint64("received", s.received.Load()).Msg("subscription stopped")
			return nil
		}

		wait := b.NextBackOff()
		s.reconnects.Add(1)
		s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("pending transaction subscription lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stats returns the current counters.
func (s *Source) Stats() Stats {
	return Stats{Received: s.received.Load(), Reconnects: s.reconnects.Load()}
}

func (s *Source) session(ctx context.Context, b backoff.BackOff) error {
	subscribe, release, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer release()

	hashes := make(chan common.Hash, s.opts.BufferSize)
	sub, err := subscribe(ctx, hashes)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	b.Reset()
	s.logger.Info().Msg("subscribed to pending transactions")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				err = errors.New("subscription closed by server")
			}
			return err
		case hash := <-hashes:
			n := s.received.Add(1)
			if !s.offer(hash) {
				return errQueueClosed
			}
			if s.opts.ProgressEvery > 0 && n%s.opts.ProgressEvery == 0 {
				s.logger.Info().Uint64("received", n).Msg("pending hashes received")
			}
		}
	}
}

func newBackOff(initial, maxInterval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
