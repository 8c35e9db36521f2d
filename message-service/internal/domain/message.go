package domain

import (
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/events"
)

// Message represents a committed chat message.
type Message struct {
	ID             int64          `json:"id"`
	ConversationID string         `json:"conversationId"`
	Sender         string         `json:"sender"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Event returns the bus event announcing the message's current state.
func (m *Message) Event() events.Event {
	if m.Status == events.StatusRecalled {
		return events.NewRecall(m.ID, m.ConversationID, m.Sender, m.Metadata, m.CreatedAt)
	}
	id := m.ID
	return events.MessagePosted{Message: events.Message{
		ID:             &id,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Content:        m.Content,
		Type:           m.Type,
		Status:         events.StatusActive,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}}
}

// PostMessageRequest represents a post message request.
type PostMessageRequest struct {
	Content        string         `json:"content"`
	ConversationID string         `json:"conversationId"`
	Type           string         `json:"type"`
	Metadata       map[string]any `json:"metadata"`
}

// ListMessagesQuery holds the history query parameters.
type ListMessagesQuery struct {
	ConversationID string `form:"conversationId"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *Message `json:"message"`
}

// MessageListResponse wraps a page of history.
type MessageListResponse struct {
	Messages []*Message `json:"messages"`
}

// BanRequest represents an admin ban request.
type BanRequest struct {
	Username string `json:"username"`
	Minutes  int    `json:"minutes"`
}

// UnbanRequest represents an admin unban request.
type UnbanRequest struct {
	Username string `json:"username"`
}

// BanResponse is returned after a ban.
type BanResponse struct {
	Message      string    `json:"message"`
	UntilMinutes int       `json:"untilMinutes"`
	BannedUntil  time.Time `json:"bannedUntil"`
}

// SensitiveWordsRequest replaces the sensitive word list.
type SensitiveWordsRequest struct {
	Words []string `json:"words"`
}

// SensitiveWordsResponse lists the sensitive words.
type SensitiveWordsResponse struct {
	Words []string `json:"words"`
}
