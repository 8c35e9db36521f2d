package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/pkg/events"
)

func TestFromEventAppliesDefaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	rec, ok := FromEvent(events.MessagePosted{Message: events.Message{Content: "hi"}}, now)
	require.True(t, ok)
	assert.Equal(t, events.DefaultConversation, rec.ConversationID)
	assert.Equal(t, UnknownSender, rec.Sender)
	assert.Equal(t, events.TypeText, rec.Type)
	assert.Equal(t, events.StatusActive, rec.Status)
	assert.Equal(t, now, rec.CreatedAt)
	assert.Equal(t, now, rec.RecordedAt)
	assert.Nil(t, rec.MessageID)
}

func TestFromEventKeepsFields(t *testing.T) {
	created := time.Date(2024, 3, 1, 7, 59, 0, 0, time.UTC)
	now := created.Add(time.Minute)
	id := int64(42)

	rec, ok := FromEvent(events.MessagePosted{Message: events.Message{
		ID:             &id,
		ConversationID: "dev-room",
		Sender:         "alice",
		Content:        "hello",
		Type:           events.TypeImage,
		Status:         events.StatusActive,
		Metadata:       map[string]any{"w": float64(10)},
		CreatedAt:      created,
	}}, now)
	require.True(t, ok)
	assert.Equal(t, "dev-room", rec.ConversationID)
	assert.Equal(t, int64(42), *rec.MessageID)
	assert.Equal(t, "alice", rec.Sender)
	assert.Equal(t, "hello", rec.Content)
	assert.Equal(t, events.TypeImage, rec.Type)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, now, rec.RecordedAt)
	assert.Equal(t, float64(10), rec.Metadata["w"])
}

func TestFromEventRecall(t *testing.T) {
	now := time.Now()
	rec, ok := FromEvent(events.NewRecall(7, "general", "alice", nil, time.Time{}), now)
	require.True(t, ok)
	assert.Equal(t, int64(7), *rec.MessageID)
	assert.Equal(t, events.StatusRecalled, rec.Status)
	assert.Equal(t, events.TypeRecall, rec.Type)
	assert.Empty(t, rec.Content)
}

func TestFromEventSkipsControl(t *testing.T) {
	_, ok := FromEvent(events.UserBanned{Username: "bob"}, time.Now())
	assert.False(t, ok)
	_, ok = FromEvent(events.UserUnbanned{Username: "bob"}, time.Now())
	assert.False(t, ok)
}
