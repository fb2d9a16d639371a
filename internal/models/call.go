package models

import "time"

// Call session statuses. ended, declined and missed are terminal.
const (
	CallStatusInitiating = "initiating"
	CallStatusRinging    = "ringing"
	CallStatusConnected  = "connected"
	CallStatusEnded      = "ended"
	CallStatusMissed     = "missed"
	CallStatusDeclined   = "declined"
)

// CallSession is the stateful record of one call attempt between two users,
// independent of the media transport.
type CallSession struct {
	ID             string     `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	CallerID       int        `db:"caller_id" json:"caller_id"`
	RecipientID    int        `db:"recipient_id" json:"recipient_id"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AnsweredAt     *time.Time `db:"answered_at" json:"answered_at,omitempty"`
	EndedAt        *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	// DurationSecs is derived as ended_at - answered_at, meaningful only
	// once the call was answered.
	DurationSecs int `db:"duration_secs" json:"duration_secs"`
}

// Terminal reports whether the session reached a final status.
func (s CallSession) Terminal() bool {
	switch s.Status {
	case CallStatusEnded, CallStatusMissed, CallStatusDeclined:
		return true
	}
	return false
}

// HasParty reports whether userID is the caller or the recipient.
func (s CallSession) HasParty(userID int) bool {
	return s.CallerID == userID || s.RecipientID == userID
}

// PeerOf returns the other party's id.
func (s CallSession) PeerOf(userID int) int {
	if s.CallerID == userID {
		return s.RecipientID
	}
	return s.CallerID
}

// CallSignal is an opaque negotiation payload relayed between the two
// parties of a call; the core never interprets it.
type CallSignal struct {
	CallID     string `json:"call_id"`
	FromUserID int    `json:"from_user_id"`
	Payload    any    `json:"payload"`
}
