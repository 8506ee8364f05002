// Package report samples pipeline counters over time and exports them.
package report

import (
	"sync"
	"time"
)

// Sample is one snapshot of cumulative pipeline counters.
type Sample struct {
	At             time.Time
	Received       uint64
	Offered        uint64
	Evicted        uint64
	Dispatched     uint64
	FetchFailed    uint64
	Delivered      uint64
	RateLimited    uint64
	DeliveryFailed uint64
	QueueDepth     int
	InFlight       int64
}

// Delta returns the counter increase from prev to s. Gauges keep s's values.
func (s Sample) Delta(prev Sample) Sample {
	return Sample{
		At:             s.At,
		Received:       sub(s.Received, prev.Received),
		Offered:        sub(s.Offered, prev.Offered),
		Evicted:        sub(s.Evicted, prev.Evicted),
		Dispatched:     sub(s.Dispatched, prev.Dispatched),
		FetchFailed:    sub(s.FetchFailed, prev.FetchFailed),
		Delivered:      sub(s.Delivered, prev.Delivered),
		RateLimited:    sub(s.RateLimited, prev.RateLimited),
		DeliveryFailed: sub(s.DeliveryFailed, prev.DeliveryFailed),
		QueueDepth:     s.QueueDepth,
		InFlight:       s.InFlight,
	}
}

func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// Series keeps the most recent samples up to a fixed limit.
type Series struct {
	mu      sync.Mutex
	limit   int
	samples []Sample
}

// NewSeries returns a Series retaining at most limit samples. limit <= 0 means unbounded.
func NewSeries(limit int) *Series {
	return &Series{limit: limit}
}

// Append adds s, dropping the oldest sample when full.
func (s *Series) Append(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.samples) == s.limit {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:len(s.samples)-1]
	}
	s.samples = append(s.samples, sample)
}

// Samples returns a copy of the retained samples, oldest first.
func (s *Series) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// Last returns the newest sample, if any.
func (s *Series) Last() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}
