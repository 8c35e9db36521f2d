package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageFrameKeepsPayloadVerbatim(t *testing.T) {
	payload := []byte(`{"id":42, "content":"hi",  "status":"active"}`)

	frame := NewMessageFrame(payload)

	assert.Equal(t, `{"event":"chat:message","data":{"id":42, "content":"hi",  "status":"active"}}`, string(frame))

	var f Frame
	require.NoError(t, json.Unmarshal(frame, &f))
	assert.Equal(t, EventChatMessage, f.Event)
}

func TestNewBanFrame(t *testing.T) {
	assert.JSONEq(t, `{"event":"chat:ban","data":{"reason":"banned"}}`, string(NewBanFrame()))
}
