// Package events defines the wire format of everything carried on the
// broadcast bus and the sealed set of event variants consumers switch on.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Bus topics.
const (
	TopicMessageEvents = "message-events"
	TopicControlEvents = "control-events"
)

// Message statuses.
const (
	StatusActive   = "active"
	StatusRecalled = "recalled"
)

// Message types.
const (
	TypeText   = "text"
	TypeImage  = "image"
	TypeFile   = "file"
	TypeSystem = "system"
	TypeVoice  = "voice"
	TypeRecall = "recall"
)

// Control event types.
const (
	ControlBan   = "ban"
	ControlUnban = "unban"
)

// DefaultConversation is the public conversation every user can post to.
const DefaultConversation = "general"

var ErrMalformedEvent = errors.New("malformed event")

// Message is the JSON body published on TopicMessageEvents.
type Message struct {
	ID             *int64         `json:"id,omitempty"`
	ConversationID string         `json:"conversationId"`
	Sender         string         `json:"sender"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Control is the JSON body published on TopicControlEvents.
type Control struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// Event is implemented only by the variants in this package.
type Event interface {
	Topic() string
	// Key is the partition key used by ordered bus drivers.
	Key() string
	isEvent()
}

// MessagePosted announces a newly committed message.
type MessagePosted struct {
	Message Message
}

// MessageRecalled announces that a message was recalled. The embedded
// message always carries an id, empty content and the recall type.
type MessageRecalled struct {
	Message Message
}

// UserBanned orders every gateway to evict the user's sessions.
type UserBanned struct {
	Username string
}

// UserUnbanned is informational for gateways.
type UserUnbanned struct {
	Username string
}

func (MessagePosted) Topic() string   { return TopicMessageEvents }
func (MessageRecalled) Topic() string { return TopicMessageEvents }
func (UserBanned) Topic() string      { return TopicControlEvents }
func (UserUnbanned) Topic() string    { return TopicControlEvents }

func (e MessagePosted) Key() string   { return e.Message.ConversationID }
func (e MessageRecalled) Key() string { return e.Message.ConversationID }
func (e UserBanned) Key() string      { return e.Username }
func (e UserUnbanned) Key() string    { return e.Username }

func (MessagePosted) isEvent()   {}
func (MessageRecalled) isEvent() {}
func (UserBanned) isEvent()      {}
func (UserUnbanned) isEvent()    {}

// NewRecall builds the tombstone for message id.
func NewRecall(id int64, conversationID, sender string, metadata map[string]any, createdAt time.Time) MessageRecalled {
	return MessageRecalled{Message: Message{
		ID:             &id,
		ConversationID: conversationID,
		Sender:         sender,
		Content:        "",
		Type:           TypeRecall,
		Status:         StatusRecalled,
		Metadata:       metadata,
		CreatedAt:      createdAt,
	}}
}

// Encode serializes e into the payload for its topic.
func Encode(e Event) ([]byte, error) {
	var body any
	switch ev := e.(type) {
	case MessagePosted:
		m := ev.Message
		m.Status = StatusActive
		body = m
	case MessageRecalled:
		if ev.Message.ID == nil {
			return nil, fmt.Errorf("%w: recall without id", ErrMalformedEvent)
		}
		m := ev.Message
		m.Status = StatusRecalled
		m.Type = TypeRecall
		m.Content = ""
		body = m
	case UserBanned:
		body = Control{Type: ControlBan, Username: ev.Username}
	case UserUnbanned:
		body = Control{Type: ControlUnban, Username: ev.Username}
	default:
		return nil, fmt.Errorf("%w: unknown event %T", ErrMalformedEvent, e)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a TopicMessageEvents payload into MessagePosted or
// MessageRecalled.
func DecodeMessage(payload []byte) (Event, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if m.ConversationID == "" {
		m.ConversationID = DefaultConversation
	}
	if m.Status == "" && m.Type == TypeRecall {
		m.Status = StatusRecalled
	}
	if m.Status == "" {
		m.Status = StatusActive
	}

	switch m.Status {
	case StatusActive:
		return MessagePosted{Message: m}, nil
	case StatusRecalled:
		if m.ID == nil {
			return nil, fmt.Errorf("%w: recall without id", ErrMalformedEvent)
		}
		m.Content = ""
		m.Type = TypeRecall
		return MessageRecalled{Message: m}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedEvent, m.Status)
	}
}

// DecodeControl parses a TopicControlEvents payload.
func DecodeControl(payload []byte) (Event, error) {
	var c Control
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if c.Username == "" {
		return nil, fmt.Errorf("%w: control event without username", ErrMalformedEvent)
	}

	switch c.Type {
	case ControlBan:
		return UserBanned{Username: c.Username}, nil
	case ControlUnban:
		return UserUnbanned{Username: c.Username}, nil
	default:
		return nil, fmt.Errorf("%w: unknown control type %q", ErrMalformedEvent, c.Type)
	}
}

// IDString formats an optional id for logs.
func IDString(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
