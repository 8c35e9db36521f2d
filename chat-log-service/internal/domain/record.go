package domain

import (
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/events"
)

// UnknownSender is recorded when an event carries no sender.
const UnknownSender = "unknown"

// LogRecord is one appended entry of the durable message log. It mirrors
// the message event it was built from plus the time it was recorded.
type LogRecord struct {
	ConversationID string         `json:"conversationId"`
	MessageID      *int64         `json:"messageId,omitempty"`
	Sender         string         `json:"sender"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"createdAt"`
	RecordedAt     time.Time      `json:"recordedAt"`
}

// FromEvent maps a message event to a log record, filling defaults for
// missing fields. Control events are not logged and return false.
func FromEvent(ev events.Event, now time.Time) (*LogRecord, bool) {
	var m events.Message
	switch e := ev.(type) {
	case events.MessagePosted:
		m = e.Message
		if m.Status == "" {
			m.Status = events.StatusActive
		}
	case events.MessageRecalled:
		m = e.Message
		m.Status = events.StatusRecalled
		m.Type = events.TypeRecall
		m.Content = ""
	case events.UserBanned, events.UserUnbanned:
		return nil, false
	default:
		return nil, false
	}

	rec := &LogRecord{
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		Sender:         m.Sender,
		Content:        m.Content,
		Type:           m.Type,
		Status:         m.Status,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
		RecordedAt:     now.UTC(),
	}
	if rec.ConversationID == "" {
		rec.ConversationID = events.DefaultConversation
	}
	if rec.Sender == "" {
		rec.Sender = UnknownSender
	}
	if rec.Type == "" {
		rec.Type = events.TypeText
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.RecordedAt
	}
	return rec, true
}

// RecordsResponse is the audit query response body.
type RecordsResponse struct {
	ConversationID string      `json:"conversationId"`
	Records        []LogRecord `json:"records"`
}
