package pubsub

const defaultBuffer = 256

// SubscribeOptions controls how a subscription attaches to its topic.
type SubscribeOptions struct {
	// Group shares the topic between subscribers with the same group.
	// Empty means the subscriber receives every payload on its own.
	Group string
	// FromEarliest replays retained payloads the group has not consumed
	// yet. Only meaningful on drivers with retention.
	FromEarliest bool
	// Buffer is the capacity of the returned channel.
	Buffer int
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*SubscribeOptions)

// WithGroup sets the consumer group.
func WithGroup(group string) SubscribeOption {
	return func(o *SubscribeOptions) { o.Group = group }
}

// FromEarliest starts a new group at the oldest retained payload.
func FromEarliest() SubscribeOption {
	return func(o *SubscribeOptions) { o.FromEarliest = true }
}

// WithBuffer sets the delivery channel capacity.
func WithBuffer(n int) SubscribeOption {
	return func(o *SubscribeOptions) {
		if n > 0 {
			o.Buffer = n
		}
	}
}

func buildOptions(opts []SubscribeOption) SubscribeOptions {
	o := SubscribeOptions{Buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
