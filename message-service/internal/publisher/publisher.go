// Package publisher announces committed writes on the broadcast bus.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

const DefaultTimeout = 3 * time.Second

var ErrPublishUnavailable = errors.New("publish unavailable")

// Publisher publishes each event once and never retries. It must only be
// called after the corresponding write has been committed.
type Publisher struct {
	bus     pubsub.Publisher
	metrics *metrics.Metrics
	timeout time.Duration
}

// New creates a publisher. A non-positive timeout uses DefaultTimeout.
func New(bus pubsub.Publisher, m *metrics.Metrics, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{bus: bus, metrics: m, timeout: timeout}
}

// Publish encodes ev and sends it to its topic. The request context only
// carries the logger: a client hanging up after commit must not cancel the
// announcement.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	l := log.Ctx(ctx)
	topic := ev.Topic()

	payload, err := events.Encode(ev)
	if err != nil {
		p.metrics.PublishFailed.WithLabelValues(topic).Inc()
		l.Error().Err(err).Str(log.FieldTopic, topic).Msg("failed to encode event")
		return fmt.Errorf("%w: %w", ErrPublishUnavailable, err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.bus.Publish(pubCtx, topic, ev.Key(), payload); err != nil {
		p.metrics.PublishFailed.WithLabelValues(topic).Inc()
		l.Warn().Err(err).Str(log.FieldTopic, topic).Str(log.FieldEventType, eventType(ev)).Msg("event not published")
		return fmt.Errorf("%w: %w", ErrPublishUnavailable, err)
	}

	p.metrics.Published.WithLabelValues(topic).Inc()
	l.Debug().Str(log.FieldTopic, topic).Str(log.FieldEventType, eventType(ev)).Msg("event published")
	return nil
}

func eventType(ev events.Event) string {
	switch ev.(type) {
	case events.MessagePosted:
		return "message_posted"
	case events.MessageRecalled:
		return "message_recalled"
	case events.UserBanned:
		return "user_banned"
	case events.UserUnbanned:
		return "user_unbanned"
	default:
		return "unknown"
	}
}
