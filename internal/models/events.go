package models

import (
	"encoding/json"
	"time"
)

// Broadcast event types pushed to connected sessions.
const (
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
	EventMessageStatus  = "message:status"

	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventCallRinging   = "call:ringing"
	EventCallConnected = "call:connected"
	EventCallEnded     = "call:ended"
	EventCallDeclined  = "call:declined"
	EventCallMissed    = "call:missed"
	EventCallSignal    = "call:signal"

	EventPresenceUpdate = "presence:update"
)

// Envelope wraps one broadcast event for one target user. Seq is the
// per-user monotonic sequence the router assigns at publish time; Key
// scopes ordering (conversation or call id).
type Envelope struct {
	Seq      uint64          `json:"seq"`
	Type     string          `json:"type"`
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

// TypingEvent is the payload of typing:start / typing:stop.
type TypingEvent struct {
	ConversationID int `json:"conversation_id"`
	UserID         int `json:"user_id"`
}

// MessageDeleted is the payload of message:deleted.
type MessageDeleted struct {
	ConversationID int `json:"conversation_id"`
	MessageID      int `json:"message_id"`
}
