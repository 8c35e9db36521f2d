package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
)

func deliveryReport(err error) chan kafka.Event {
	topic := "message-events"
	ch := make(chan kafka.Event, 1)
	ch <- &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic, Error: err}}
	return ch
}

func TestAwaitDeliveryAcknowledged(t *testing.T) {
	assert.NoError(t, awaitDelivery(context.Background(), "message-events", deliveryReport(nil)))
}

func TestAwaitDeliveryReportsBrokerFailure(t *testing.T) {
	failure := kafka.NewError(kafka.ErrTransport, "broker down", false)

	err := awaitDelivery(context.Background(), "message-events", deliveryReport(failure))
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.Contains(t, err.Error(), "broker down")
}

func TestAwaitDeliveryGivesUpOnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := awaitDelivery(ctx, "message-events", make(chan kafka.Event))
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestSanitizeGroupIDKeepsValidNames(t *testing.T) {
	assert.Equal(t, "chat-log", sanitizeGroupID("chat-log"))
}
