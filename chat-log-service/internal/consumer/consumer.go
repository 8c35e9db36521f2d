package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/store"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

const DefaultGroup = "chat-log"

var ErrSubscriptionLost = errors.New("bus subscription lost")

// Consumer appends every message event to the durable log. It shares one
// consumer group across log writer replicas and never with gateways.
type Consumer struct {
	bus     pubsub.Subscriber
	store   store.Store
	ledger  *events.Ledger
	metrics *metrics.Metrics
	group   string
	buffer  int
	logger  zerolog.Logger
	now     func() time.Time

	deliveries <-chan *pubsub.Delivery
}

// New creates a consumer. An empty group uses DefaultGroup.
func New(bus pubsub.Subscriber, st store.Store, ledger *events.Ledger, m *metrics.Metrics, group string, buffer int) *Consumer {
	if group == "" {
		group = DefaultGroup
	}
	return &Consumer{
		bus:     bus,
		store:   st,
		ledger:  ledger,
		metrics: m,
		group:   group,
		buffer:  buffer,
		logger:  log.L().With().Str("component", "consumer").Logger(),
		now:     time.Now,
	}
}

// Start subscribes to the message topic. An error here means the
// service must not start.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.bus.Subscribe(ctx, events.TopicMessageEvents,
		pubsub.WithGroup(c.group),
		pubsub.FromEarliest(),
		pubsub.WithBuffer(c.buffer),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicMessageEvents, err)
	}

	c.deliveries = deliveries
	c.metrics.BusUp.Set(1)
	c.logger.Info().Str(log.FieldTopic, events.TopicMessageEvents).Str("group", c.group).Msg("consumer started")
	return nil
}

// Run consumes until ctx is done. It returns ErrSubscriptionLost when the
// subscription closes while ctx is live.
func (c *Consumer) Run(ctx context.Context) error {
	if c.deliveries == nil {
		return errors.New("consumer not started")
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("consumer stopping")
			return nil
		case d, ok := <-c.deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				c.metrics.BusUp.Set(0)
				c.logger.Error().Str(log.FieldTopic, events.TopicMessageEvents).Msg("bus subscription closed")
				return fmt.Errorf("%w: %s", ErrSubscriptionLost, events.TopicMessageEvents)
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d *pubsub.Delivery) {
	ev, err := events.DecodeMessage(d.Payload)
	if err != nil {
		c.metrics.Malformed.Inc()
		c.logger.Warn().Err(err).Str(log.FieldTopic, d.Topic).Msg("dropping malformed message event")
		return
	}

	rec, ok := domain.FromEvent(ev, c.now())
	if !ok {
		return
	}

	if verdict := c.ledger.Observe(ev); verdict != events.Deliver {
		c.metrics.Skipped.WithLabelValues(verdict.String()).Inc()
		c.logger.Debug().
			Str(log.FieldMessageID, events.IDString(rec.MessageID)).
			Str("verdict", verdict.String()).
			Msg("message event not appended")
		return
	}

	if err := c.store.Append(ctx, rec); err != nil {
		c.metrics.StoreFailed.Inc()
		c.logger.Error().Err(err).
			Str(log.FieldConversationID, rec.ConversationID).
			Str(log.FieldMessageID, events.IDString(rec.MessageID)).
			Msg("failed to append log record")
		return
	}

	c.metrics.Recorded.Inc()
	c.logger.Debug().
		Str(log.FieldConversationID, rec.ConversationID).
		Str(log.FieldMessageID, events.IDString(rec.MessageID)).
		Str("status", rec.Status).
		Msg("log record appended")
}
