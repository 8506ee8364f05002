package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempool-sniper/internal/fetcher"
	"mempool-sniper/internal/intake"
	"mempool-sniper/internal/mempool"
	"mempool-sniper/internal/pipeline"
	"mempool-sniper/internal/source"
)

func TestRecorderObservers(t *testing.T) {
	r := New(WithoutRuntimeMetrics())

	r.ObserveFetch(10*time.Millisecond, nil)
	r.ObserveFetch(5*time.Millisecond, fetcher.ErrNotFound)
	r.ObserveFetch(time.Second, errors.New("timeout"))
	r.ObserveClassified("swapExactETHForTokens")
	r.ObserveClassified("swapExactETHForTokens")
	r.ObserveClassified(mempool.LabelUnknown)
	r.ObserveDelivery("discord", mempool.OutcomeDelivered, 0)
	r.ObserveDelivery("discord", mempool.OutcomeRateLimited, 0)
	r.ObserveDelivery("kafka", mempool.OutcomeFailed, 2*time.Second)

	assert.Equal(t, 3, testutil.CollectAndCount(r.fetchDuration))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.classified.WithLabelValues("swapExactETHForTokens")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.classified.WithLabelValues("unknown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.deliveries.WithLabelValues("discord", "delivered")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.deliveries.WithLabelValues("discord", "rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.deliveries.WithLabelValues("kafka", "failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.deliveryWait), "immediate drops are not observed as waits")
}

func TestSnapshotCollector(t *testing.T) {
	r := New(WithoutRuntimeMetrics())
	q := intake.New[int](2)
	q.Offer(1)
	q.Offer(2)
	q.Offer(3)

	require.NoError(t, r.RegisterSnapshots(Snapshots{
		Queue: q.Stats,
		Pipeline: func() pipeline.Stats {
			return pipeline.Stats{Permits: 50, InFlight: 3, Dispatched: 10, Delivered: 6, RateLimited: 1}
		},
		Source: func() source.Stats { return source.Stats{Received: 12, Reconnects: 2} },
	}))

	expected := `
# HELP mempool_sniper_queue_depth Pending hashes in the intake queue.
# TYPE mempool_sniper_queue_depth gauge
mempool_sniper_queue_depth 2
# HELP mempool_sniper_queue_events_total Intake queue operations by kind.
# TYPE mempool_sniper_queue_events_total counter
mempool_sniper_queue_events_total{kind="evicted"} 1
mempool_sniper_queue_events_total{kind="offered"} 3
mempool_sniper_queue_events_total{kind="rejected"} 0
mempool_sniper_queue_events_total{kind="taken"} 0
# HELP mempool_sniper_workers_in_flight Workers currently holding a permit.
# TYPE mempool_sniper_workers_in_flight gauge
mempool_sniper_workers_in_flight 3
# HELP mempool_sniper_source_reconnects_total Subscription reconnect attempts.
# TYPE mempool_sniper_source_reconnects_total counter
mempool_sniper_source_reconnects_total 2
`
	err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"mempool_sniper_queue_depth",
		"mempool_sniper_queue_events_total",
		"mempool_sniper_workers_in_flight",
		"mempool_sniper_source_reconnects_total",
	)
	assert.NoError(t, err)
}

func TestSnapshotCollectorSkipsMissingSources(t *testing.T) {
	r := New(WithoutRuntimeMetrics())
	require.NoError(t, r.RegisterSnapshots(Snapshots{}))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.False(t, strings.HasPrefix(mf.GetName(), namespace+"_queue"), "unexpected family %s", mf.GetName())
	}
}

func TestHandlerServesExposition(t *testing.T) {
	r := New()
	r.ObserveClassified("multicall")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mempool_sniper_classified_total{method="multicall"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
