package pubsub

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
)

// Topics created at startup when missing.
var kafkaTopics = []string{"message-events", "control-events"}

// kafkaSubscription tracks a single consumer subscription.
type kafkaSubscription struct {
	consumer *kafka.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// KafkaPubSub implements PubSub interface using Apache Kafka.
type KafkaPubSub struct {
	producer      *kafka.Producer
	subscriptions map[string]*kafkaSubscription
	config        KafkaConfig
	logger        zerolog.Logger
	mu            sync.Mutex
	closed        bool
	doneCh        chan struct{}
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = 5 * time.Second
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kps := &KafkaPubSub{
		producer:      p,
		subscriptions: make(map[string]*kafkaSubscription),
		config:        cfg,
		logger:        pkglog.L().With().Str("component", "pubsub.kafka").Logger(),
		doneCh:        make(chan struct{}),
	}

	go kps.deliveryReportHandler()

	if err := kps.ensureTopics(); err != nil {
		kps.logger.Warn().Err(err).Msg("failed to ensure kafka topics (may already exist)")
	}

	return kps, nil
}

// ensureTopics creates the bus topics if they don't exist.
func (k *KafkaPubSub) ensureTopics() error {
	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}
	replication := k.config.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := make([]kafka.TopicSpecification, 0, len(kafkaTopics))
	for _, t := range kafkaTopics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}

	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			k.logger.Warn().Str(pkglog.FieldTopic, r.Topic).Err(r.Error).Msg("failed to create topic")
		}
	}

	return nil
}

// deliveryReportHandler logs producer events that are not tied to a
// Publish call.
func (k *KafkaPubSub) deliveryReportHandler() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				k.logger.Error().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
			}
		case kafka.Error:
			k.logger.Warn().Err(ev).Msg("kafka producer error")
		}
	}
	close(k.doneCh)
}

// Publish produces payload to topic, partitioned by key.
func (k *KafkaPubSub) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value: payload,
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	delivered := make(chan kafka.Event, 1)
	if err := k.producer.Produce(msg, delivered); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return awaitDelivery(ctx, topic, delivered)
}

// awaitDelivery blocks until the broker acknowledges the message or ctx
// ends, so an unreachable broker surfaces as a Publish error.
func awaitDelivery(ctx context.Context, topic string, delivered <-chan kafka.Event) error {
	select {
	case e := <-delivered:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery report %T for %s", e, topic)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, ctx.Err())
	}
}

// Subscribe creates a consumer for topic. Without a group every call gets
// its own throwaway group so it sees every payload.
func (k *KafkaPubSub) Subscribe(ctx context.Context, topic string, opts ...SubscribeOption) (<-chan *Delivery, error) {
	o := buildOptions(opts)

	group := o.Group
	if group == "" {
		base := k.config.GroupID
		if base == "" {
			base = "chat"
		}
		group = fmt.Sprintf("%s-%s", base, uuid.NewString())
	}
	group = sanitizeGroupID(group)

	offset := "latest"
	if o.FromEarliest {
		offset = "earliest"
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                group,
		"auto.offset.reset":       offset,
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	// Metadata round trip proves the broker is reachable before we report
	// the subscription as established.
	if _, err := c.GetMetadata(&topic, false, int(k.config.MetadataTimeout.Milliseconds())); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, topic, err)
	}

	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSubscribeFailed, topic, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		c.Close()
		return nil, ErrClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{consumer: c, cancel: cancel, done: make(chan struct{})}
	subKey := topic + "/" + group + "/" + uuid.NewString()
	k.subscriptions[subKey] = sub

	out := make(chan *Delivery, o.Buffer)
	go k.consume(subCtx, subKey, sub, out)

	k.logger.Info().Str(pkglog.FieldTopic, topic).Str("group", group).Str("offset", offset).Msg("kafka subscription established")
	return out, nil
}

// consume polls Kafka and forwards payloads. Delivery blocks rather than
// dropping so that back-pressure reaches the broker.
func (k *KafkaPubSub) consume(ctx context.Context, subKey string, sub *kafkaSubscription, out chan<- *Delivery) {
	defer close(sub.done)
	defer close(out)
	defer func() {
		k.mu.Lock()
		delete(k.subscriptions, subKey)
		k.mu.Unlock()
		sub.consumer.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := sub.consumer.Poll(500)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			d := &Delivery{
				Key:        string(e.Key),
				Payload:    e.Value,
				ReceivedAt: time.Now(),
			}
			if e.TopicPartition.Topic != nil {
				d.Topic = *e.TopicPartition.Topic
			}

			select {
			case out <- d:
			case <-ctx.Done():
				return
			}

		case kafka.Error:
			k.logger.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
				return
			}

		case kafka.OffsetsCommitted:
			// Normal auto-commit
		default:
			// Ignore other events
		}
	}
}

// Ping requests cluster metadata through the producer.
func (k *KafkaPubSub) Ping(ctx context.Context) error {
	timeout := k.config.MetadataTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if _, err := k.producer.GetMetadata(nil, false, int(timeout.Milliseconds())); err != nil {
		return fmt.Errorf("kafka metadata request failed: %w", err)
	}
	return nil
}

// Close closes all subscriptions and the producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	subs := make([]*kafkaSubscription, 0, len(k.subscriptions))
	for _, sub := range k.subscriptions {
		subs = append(subs, sub)
	}
	k.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		<-sub.done
	}

	k.producer.Flush(5000)
	k.producer.Close()
	<-k.doneCh

	return nil
}

// sanitizeGroupID replaces characters not suitable for Kafka group IDs.
var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeGroupID(s string) string {
	return groupIDRegexp.ReplaceAllString(s, "-")
}
