package pipeline

import "sync/atomic"

// Stats is a point-in-time view of the governor counters.
type Stats struct {
	Permits        int
	InFlight       int64
	Dispatched     uint64
	Abandoned      uint64
	FetchFailed    uint64
	Classified     uint64
	Delivered      uint64
	RateLimited    uint64
	DeliveryFailed uint64
	Panics         uint64
}

type counters struct {
	inFlight       atomic.Int64
	dispatched     atomic.Uint64
	abandoned      atomic.Uint64
	fetchFailed    atomic.Uint64
	classified     atomic.Uint64
	delivered      atomic.Uint64
	rateLimited    atomic.Uint64
	deliveryFailed atomic.Uint64
	panics         atomic.Uint64
}

func (c *counters) snapshot(permits int) Stats {
	return Stats{
		Permits:        permits,
		InFlight:       c.inFlight.Load(),
		Dispatched:     c.dispatched.Load(),
		Abandoned:      c.abandoned.Load(),
		FetchFailed:    c.fetchFailed.Load(),
		Classified:     c.classified.Load(),
		Delivered:      c.delivered.Load(),
		RateLimited:    c.rateLimited.Load(),
		DeliveryFailed: c.deliveryFailed.Load(),
		Panics:         c.panics.Load(),
	}
}
