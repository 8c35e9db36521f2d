package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-chat/gateway-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/gateway-service/internal/metrics"
	"github.com/weiawesome/wes-io-chat/pkg/events"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

var ErrSubscriptionLost = errors.New("bus subscription lost")

// Sessions is the part of the hub the relay drives.
type Sessions interface {
	Broadcast(ctx context.Context, frame []byte) error
	EvictUser(ctx context.Context, username string) (int, error)
}

// Relay moves bus traffic into the hub: message events are fanned out to
// every session, control events evict sessions.
type Relay struct {
	bus      pubsub.Subscriber
	sessions Sessions
	ledger   *events.Ledger
	metrics  *metrics.Metrics
	buffer   int
	logger   zerolog.Logger

	messages <-chan *pubsub.Delivery
	controls <-chan *pubsub.Delivery
}

func New(bus pubsub.Subscriber, sessions Sessions, ledger *events.Ledger, m *metrics.Metrics, buffer int) *Relay {
	return &Relay{
		bus:      bus,
		sessions: sessions,
		ledger:   ledger,
		metrics:  m,
		buffer:   buffer,
		logger:   log.L().With().Str("component", "relay").Logger(),
	}
}

// Start subscribes to both topics. Each gateway receives every payload,
// so no consumer group is shared with other instances. An error here
// means the instance must not accept connections.
func (r *Relay) Start(ctx context.Context) error {
	messages, err := r.bus.Subscribe(ctx, events.TopicMessageEvents, pubsub.WithBuffer(r.buffer))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicMessageEvents, err)
	}
	controls, err := r.bus.Subscribe(ctx, events.TopicControlEvents, pubsub.WithBuffer(r.buffer))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.TopicControlEvents, err)
	}

	r.messages = messages
	r.controls = controls
	r.metrics.BusUp.Set(1)
	r.logger.Info().Msg("bus subscriptions established")
	return nil
}

// Run consumes both subscriptions until ctx is done. It returns
// ErrSubscriptionLost when either subscription closes while ctx is live.
func (r *Relay) Run(ctx context.Context) error {
	if r.messages == nil || r.controls == nil {
		return errors.New("relay not started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.consume(gctx, events.TopicMessageEvents, r.messages, r.handleMessage)
	})
	g.Go(func() error {
		return r.consume(gctx, events.TopicControlEvents, r.controls, r.handleControl)
	})

	err := g.Wait()
	if errors.Is(err, ErrSubscriptionLost) {
		r.metrics.BusUp.Set(0)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) consume(ctx context.Context, topic string, ch <-chan *pubsub.Delivery, handle func(context.Context, *pubsub.Delivery)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error().Str(log.FieldTopic, topic).Msg("bus subscription closed")
				return fmt.Errorf("%w: %s", ErrSubscriptionLost, topic)
			}
			handle(ctx, d)
		}
	}
}

func (r *Relay) handleMessage(ctx context.Context, d *pubsub.Delivery) {
	ev, err := events.DecodeMessage(d.Payload)
	if err != nil {
		r.metrics.Malformed.WithLabelValues(events.TopicMessageEvents).Inc()
		r.logger.Warn().Err(err).Str(log.FieldTopic, events.TopicMessageEvents).Msg("dropping malformed message event")
		return
	}

	// Posted payloads go out verbatim. Recalls are re-encoded so clients
	// never see content a producer left on the tombstone.
	var msg events.Message
	payload := d.Payload
	switch e := ev.(type) {
	case events.MessagePosted:
		msg = e.Message
	case events.MessageRecalled:
		msg = e.Message
		if payload, err = events.Encode(e); err != nil {
			r.metrics.Malformed.WithLabelValues(events.TopicMessageEvents).Inc()
			r.logger.Warn().Err(err).Str(log.FieldMessageID, events.IDString(msg.ID)).Msg("dropping unencodable recall")
			return
		}
	case events.UserBanned, events.UserUnbanned:
		return
	}

	if verdict := r.ledger.Observe(ev); verdict != events.Deliver {
		r.metrics.Skipped.WithLabelValues(verdict.String()).Inc()
		r.logger.Debug().
			Str(log.FieldMessageID, events.IDString(msg.ID)).
			Str("verdict", verdict.String()).
			Msg("message event not relayed")
		return
	}

	if err := r.sessions.Broadcast(ctx, domain.NewMessageFrame(payload)); err != nil {
		r.logger.Debug().Err(err).Msg("broadcast aborted")
	}
}

func (r *Relay) handleControl(ctx context.Context, d *pubsub.Delivery) {
	ev, err := events.DecodeControl(d.Payload)
	if err != nil {
		r.metrics.Malformed.WithLabelValues(events.TopicControlEvents).Inc()
		r.logger.Warn().Err(err).Str(log.FieldTopic, events.TopicControlEvents).Msg("dropping malformed control event")
		return
	}

	switch e := ev.(type) {
	case events.UserBanned:
		n, err := r.sessions.EvictUser(ctx, e.Username)
		if err != nil {
			r.logger.Debug().Err(err).Str(log.FieldUsername, e.Username).Msg("eviction aborted")
			return
		}
		audit.LogWithDetail(ctx, audit.ActionEvict, e.Username, fmt.Sprintf("sessions=%d", n), "banned user evicted")
	case events.UserUnbanned:
		audit.Log(ctx, audit.ActionUnbanSeen, e.Username, "unban acknowledged")
	case events.MessagePosted, events.MessageRecalled:
	}
}
