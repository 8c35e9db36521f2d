package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the log writer's Prometheus collectors.
type Metrics struct {
	Recorded    prometheus.Counter
	Skipped     *prometheus.CounterVec // by ledger verdict
	Malformed   prometheus.Counter
	StoreFailed prometheus.Counter
	BusUp       prometheus.Gauge
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "records_appended_total",
			Help:      "Message events appended to the durable log.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "events_skipped_total",
			Help:      "Message events not appended because of the dedupe ledger.",
		}, []string{"verdict"}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "events_malformed_total",
			Help:      "Bus payloads that could not be decoded.",
		}),
		StoreFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "store_failures_total",
			Help:      "Records a store failed to append.",
		}),
		BusUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_log",
			Name:      "bus_up",
			Help:      "1 while the message subscription is established.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "query_cache_hits_total",
			Help:      "Audit queries served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_log",
			Name:      "query_cache_misses_total",
			Help:      "Audit queries read from the store.",
		}),
	}

	reg.MustRegister(
		m.Recorded,
		m.Skipped,
		m.Malformed,
		m.StoreFailed,
		m.BusUp,
		m.CacheHits,
		m.CacheMisses,
	)
	return m
}
