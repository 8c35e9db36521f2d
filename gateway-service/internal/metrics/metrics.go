package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	Sessions          prometheus.Gauge
	Relayed           prometheus.Counter
	Skipped           *prometheus.CounterVec // by ledger verdict
	Malformed         *prometheus.CounterVec // by topic
	Closed            *prometheus.CounterVec // by reason
	HandshakeRejected *prometheus.CounterVec // by reason
	BusUp             prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_gateway",
			Name:      "sessions",
			Help:      "Live client sessions on this instance.",
		}),
		Relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "messages_relayed_total",
			Help:      "Message events fanned out to local sessions.",
		}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "messages_skipped_total",
			Help:      "Message events not relayed because of the dedupe ledger.",
		}, []string{"verdict"}),
		Malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "events_malformed_total",
			Help:      "Bus payloads that could not be decoded.",
		}, []string{"topic"}),
		Closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "sessions_closed_total",
			Help:      "Sessions closed by the server.",
		}, []string{"reason"}),
		HandshakeRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_gateway",
			Name:      "handshakes_rejected_total",
			Help:      "Connection attempts refused before upgrade.",
		}, []string{"reason"}),
		BusUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat_gateway",
			Name:      "bus_up",
			Help:      "1 while both bus subscriptions are established.",
		}),
	}

	reg.MustRegister(
		m.Sessions,
		m.Relayed,
		m.Skipped,
		m.Malformed,
		m.Closed,
		m.HandshakeRejected,
		m.BusUp,
	)
	return m
}
