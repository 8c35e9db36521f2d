package pubsub

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryPubSub is an in-process bus. Subscribers sharing a group receive
// payloads round-robin; ungrouped subscribers each receive everything.
type MemoryPubSub struct {
	mu     sync.Mutex
	topics map[string]map[string]*memoryGroup
	seq    int
	closed bool
}

type memoryGroup struct {
	subs []*memorySub
	next int
}

type memorySub struct {
	ch        chan *Delivery
	done      chan struct{}
	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

// NewMemoryPubSub creates an empty in-memory bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{topics: make(map[string]map[string]*memoryGroup)}
}

// Publish delivers payload to every group subscribed to topic. It blocks
// while a receiving subscriber's buffer is full.
func (m *MemoryPubSub) Publish(ctx context.Context, topic, key string, payload []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var targets []*memorySub
	for _, g := range m.topics[topic] {
		if len(g.subs) == 0 {
			continue
		}
		targets = append(targets, g.subs[g.next%len(g.subs)])
		g.next++
	}
	m.mu.Unlock()

	for _, s := range targets {
		d := &Delivery{
			Topic:      topic,
			Key:        key,
			Payload:    append([]byte(nil), payload...),
			ReceivedAt: time.Now(),
		}
		if err := s.send(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a subscriber on topic.
func (m *MemoryPubSub) Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (<-chan *Delivery, error) {
	o := buildOptions(opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	group := o.Group
	if group == "" {
		m.seq++
		group = "\x00solo-" + strconv.Itoa(m.seq)
	}

	groups, ok := m.topics[topic]
	if !ok {
		groups = make(map[string]*memoryGroup)
		m.topics[topic] = groups
	}
	g, ok := groups[group]
	if !ok {
		g = &memoryGroup{}
		groups[group] = g
	}

	s := &memorySub{ch: make(chan *Delivery, o.Buffer), done: make(chan struct{})}
	g.subs = append(g.subs, s)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		m.remove(topic, group, s)
		s.close()
	}()

	return s.ch, nil
}

// DropSubscriptions closes every subscription on topic as if the broker
// connection had been lost.
func (m *MemoryPubSub) DropSubscriptions(topic string) {
	m.mu.Lock()
	var subs []*memorySub
	for _, g := range m.topics[topic] {
		subs = append(subs, g.subs...)
	}
	delete(m.topics, topic)
	m.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (m *MemoryPubSub) SubscriberCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.topics[topic] {
		n += len(g.subs)
	}
	return n
}

// Ping reports ErrClosed after Close.
func (m *MemoryPubSub) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close closes every subscription.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var subs []*memorySub
	for _, groups := range m.topics {
		for _, g := range groups {
			subs = append(subs, g.subs...)
		}
	}
	m.topics = make(map[string]map[string]*memoryGroup)
	m.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	return nil
}

func (m *MemoryPubSub) remove(topic, group string, s *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.topics[topic][group]
	if !ok {
		return
	}
	for i, cur := range g.subs {
		if cur == s {
			g.subs = append(g.subs[:i], g.subs[i+1:]...)
			break
		}
	}
	if len(g.subs) == 0 {
		delete(m.topics[topic], group)
	}
}

func (s *memorySub) send(ctx context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- d:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close unblocks any pending send before closing the channel.
func (s *memorySub) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
