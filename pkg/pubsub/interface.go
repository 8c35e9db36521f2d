package pubsub

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed          = errors.New("pubsub is closed")
	ErrUnknownDriver   = errors.New("unknown pubsub driver")
	ErrSubscribeFailed = errors.New("failed to establish subscription")
	ErrPublishFailed   = errors.New("publish not acknowledged")
)

// Delivery is one payload received from a topic.
type Delivery struct {
	Topic      string
	Key        string
	Payload    []byte
	ReceivedAt time.Time
}

// Publisher publishes payloads to the bus.
type Publisher interface {
	// Publish sends payload to topic. key selects the partition on drivers
	// that have one and is ignored otherwise.
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Subscriber subscribes to bus topics.
type Subscriber interface {
	// Subscribe returns once the subscription is confirmed by the broker.
	// The returned channel is closed when ctx is done or when the
	// subscription is lost; callers tell the two apart by checking ctx.
	Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (<-chan *Delivery, error)
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	// Ping checks that the broker is reachable.
	Ping(ctx context.Context) error
	Close() error
}
