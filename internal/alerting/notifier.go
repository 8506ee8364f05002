// Package alerting delivers classified transactions to external endpoints.
//
// A Notifier performs one delivery. A Sink wraps notifiers behind a token
// bucket and reduces every attempt to a mempool.Outcome.
package alerting

import (
	"context"
	"errors"
	"time"

	"mempool-sniper/internal/mempool"
)

// ErrRateLimited marks a rejection by the endpoint's own rate limiter.
var ErrRateLimited = errors.New("endpoint rate limited")

// Notifier sends one alert to an external endpoint.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rec mempool.Record) error
}

// Sink delivers a record and reports the terminal outcome. It never fails.
type Sink interface {
	Deliver(ctx context.Context, rec mempool.Record) mempool.Outcome
}

// Observer receives per-attempt delivery results.
type Observer interface {
	ObserveDelivery(channel string, outcome mempool.Outcome, wait time.Duration)
}
