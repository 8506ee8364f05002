package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mempool-sniper/internal/intake"
	"mempool-sniper/internal/pipeline"
	"mempool-sniper/internal/source"
)

var (
	descQueueDepth    = prometheus.NewDesc(namespace+"_queue_depth", "Pending hashes in the intake queue.", nil, nil)
	descQueueCapacity = prometheus.NewDesc(namespace+"_queue_capacity", "Capacity of the intake queue.", nil, nil)
	descQueueEvents   = prometheus.NewDesc(namespace+"_queue_events_total", "Intake queue operations by kind.", []string{"kind"}, nil)

	descPermits     = prometheus.NewDesc(namespace+"_worker_permits", "Size of the worker permit pool.", nil, nil)
	descInFlight    = prometheus.NewDesc(namespace+"_workers_in_flight", "Workers currently holding a permit.", nil, nil)
	descDispatched  = prometheus.NewDesc(namespace+"_dispatched_total", "Hashes handed to a worker.", nil, nil)
	descEventResult = prometheus.NewDesc(namespace+"_events_total", "Terminal per-event results.", []string{"result"}, nil)

	descReceived   = prometheus.NewDesc(namespace+"_source_hashes_total", "Pending hashes received from the node.", nil, nil)
	descReconnects = prometheus.NewDesc(namespace+"_source_reconnects_total", "Subscription reconnect attempts.", nil, nil)
)

// Snapshots supplies point-in-time stats. Nil funcs are skipped.
type Snapshots struct {
	Queue    func() intake.Stats
	Pipeline func() pipeline.Stats
	Source   func() source.Stats
}

type snapshotCollector struct {
	snap Snapshots
}

var _ prometheus.Collector = &snapshotCollector{}

// RegisterSnapshots exposes the stats behind snap on the recorder's registry.
func (r *Recorder) RegisterSnapshots(snap Snapshots) error {
	return r.registry.Register(&snapshotCollector{snap: snap})
}

// Describe implements prometheus.Collector.
func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descQueueDepth, descQueueCapacity, descQueueEvents,
		descPermits, descInFlight, descDispatched, descEventResult,
		descReceived, descReconnects,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	if c.snap.Queue != nil {
		q := c.snap.Queue()
		ch <- prometheus.MustNewConstMetric(descQueueDepth, prometheus.GaugeValue, float64(q.Depth))
		ch <- prometheus.MustNewConstMetric(descQueueCapacity, prometheus.GaugeValue, float64(q.Capacity))
		for kind, v := range map[string]uint64{
			"offered":  q.Offered,
			"evicted":  q.Evicted,
			"rejected": q.Rejected,
			"taken":    q.Taken,
		} {
			ch <- prometheus.MustNewConstMetric(descQueueEvents, prometheus.CounterValue, float64(v), kind)
		}
	}

	if c.snap.Pipeline != nil {
		p := c.snap.Pipeline()
		ch <- prometheus.MustNewConstMetric(descPermits, prometheus.GaugeValue, float64(p.Permits))
		ch <- prometheus.MustNewConstMetric(descInFlight, prometheus.GaugeValue, float64(p.InFlight))
		ch <- prometheus.MustNewConstMetric(descDispatched, prometheus.CounterValue, float64(p.Dispatched))
		for result, v := range map[string]uint64{
			"fetch_failed":    p.FetchFailed,
			"delivered":       p.Delivered,
			"rate_limited":    p.RateLimited,
			"delivery_failed": p.DeliveryFailed,
			"panic":           p.Panics,
			"abandoned":       p.Abandoned,
		} {
			ch <- prometheus.MustNewConstMetric(descEventResult, prometheus.CounterValue, float64(v), result)
		}
	}

	if c.snap.Source != nil {
		s := c.snap.Source()
		ch <- prometheus.MustNewConstMetric(descReceived, prometheus.CounterValue, float64(s.Received))
		ch <- prometheus.MustNewConstMetric(descReconnects, prometheus.CounterValue, float64(s.Reconnects))
	}
}
