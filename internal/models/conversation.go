package models

import "time"

// Conversation is the unique two-party thread between a pair of users.
// Participants are stored low-id-first so the unordered pair stays unique.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// PeerOf returns the other participant's id.
func (c Conversation) PeerOf(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary provides an API-friendly view of a conversation for a user.
type ConversationSummary struct {
	ConversationID int       `db:"id" json:"conversation_id"`
	PeerID         int       `json:"peer_id"`
	Created        time.Time `db:"created_at" json:"created_at"`
}
