// Package metrics exposes prometheus/client_golang counters and gauges for
// the PartialMap controller. Grounded on the teacher's observability
// surface (core/metrics.Metrics / Counter) but backed by a real registry
// instead of the teacher's bespoke in-process series store, following the
// pattern the rest of the example pack uses (e.g. splitter/metrics.go's
// promauto.NewCounterVec).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every counter/gauge a PartialMap instance reports. Each
// field is independently registered so callers running multiple maps in
// one process can pass distinct registries.
type Metrics struct {
	OpsApplied      *prometheus.CounterVec
	OpsSubmitted    prometheus.Counter
	FlushesStarted  prometheus.Counter
	FlushesApplied  prometheus.Counter
	FlushesIgnored  prometheus.Counter
	WorkingSetSize  prometheus.Gauge
	UnflushedChange prometheus.Gauge
}

// New registers a fresh metric set against reg. Pass prometheus.NewRegistry()
// in tests to avoid colliding with the global DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hivemap_ops_applied_total",
			Help: "Operations applied to this client's view, by kind.",
		}, []string{"kind"}),
		OpsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemap_ops_submitted_total",
			Help: "Locally issued operations submitted to the host runtime.",
		}),
		FlushesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemap_flushes_started_total",
			Help: "Compaction flushes this client initiated as leader.",
		}),
		FlushesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemap_flushes_applied_total",
			Help: "Flush ops that updated local tree state.",
		}),
		FlushesIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "hivemap_flushes_ignored_total",
			Help: "Flush ops ignored as stale concurrent attempts.",
		}),
		WorkingSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hivemap_working_set_size",
			Help: "Keys currently materialized in memory across the sequenced cache and the chunked tree.",
		}),
		UnflushedChange: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hivemap_unflushed_change_count",
			Help: "Acked mutations in SequencedState not yet folded into a flush.",
		}),
	}
}
