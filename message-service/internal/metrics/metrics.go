package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the message service's Prometheus collectors.
type Metrics struct {
	Posted        prometheus.Counter
	Recalled      prometheus.Counter
	Flagged       prometheus.Counter
	Rejected      *prometheus.CounterVec // by reason
	RateLimited   prometheus.Counter
	Published     *prometheus.CounterVec // by topic
	PublishFailed *prometheus.CounterVec // by topic
	Bans          *prometheus.CounterVec // by action
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Posted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "posted_total",
			Help:      "Messages committed to the event store.",
		}),
		Recalled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "recalled_total",
			Help:      "Messages recalled by their sender.",
		}),
		Flagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "flagged_total",
			Help:      "Messages that had sensitive words masked.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "rejected_total",
			Help:      "Posts refused by the content filter.",
		}, []string{"reason"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "rate_limited_total",
			Help:      "Posts refused by the per-user rate limit.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "events_published_total",
			Help:      "Events published to the bus after commit.",
		}, []string{"topic"}),
		PublishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "events_publish_failed_total",
			Help:      "Committed writes whose event could not be published.",
		}, []string{"topic"}),
		Bans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat_message",
			Name:      "moderation_actions_total",
			Help:      "Ban and unban actions applied.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.Posted,
		m.Recalled,
		m.Flagged,
		m.Rejected,
		m.RateLimited,
		m.Published,
		m.PublishFailed,
		m.Bans,
	)
	return m
}
