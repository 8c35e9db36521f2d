package domain

import "encoding/json"

// Frame event names sent to clients.
const (
	EventChatMessage = "chat:message"
	EventChatBan     = "chat:ban"
)

// Close codes used when the server ends a session.
const (
	CloseNormal        = 1000 // client left or server shutting down cleanly
	CloseGoingAway     = 1001 // instance shutting down
	ClosePolicy        = 1008 // send buffer overflow
	CloseServiceReboot = 1012 // bus lost, reconnect to another instance
	CloseBanned        = 4003
)

// Close reasons.
const (
	ReasonBanned     = "banned"
	ReasonSlowClient = "send buffer full"
	ReasonBusLost    = "event bus unavailable"
	ReasonShutdown   = "server shutting down"
)

// Frame is the envelope for every server to client message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// BanNotice is the payload of a chat:ban frame.
type BanNotice struct {
	Reason string `json:"reason"`
}

var (
	messagePrefix = []byte(`{"event":"` + EventChatMessage + `","data":`)
	frameSuffix   = []byte(`}`)
)

// NewMessageFrame wraps a bus payload without re-encoding it, so clients
// receive exactly what was published.
func NewMessageFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(messagePrefix)+len(payload)+len(frameSuffix))
	frame = append(frame, messagePrefix...)
	frame = append(frame, payload...)
	return append(frame, frameSuffix...)
}

// NewBanFrame builds the eviction notice sent before a ban close.
func NewBanFrame() []byte {
	data, _ := json.Marshal(BanNotice{Reason: ReasonBanned})
	frame, _ := json.Marshal(Frame{Event: EventChatBan, Data: data})
	return frame
}
