package models

import "time"

// Delivery status lifecycle for a message. Status only moves forward.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Message represents a chat message. Observers order messages by
// (created_at, id); the serial id breaks creation-time ties.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	SenderID       int       `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	Status         string    `db:"status" json:"status"`
	Edited         bool      `db:"edited" json:"edited"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// StatusRank maps delivery statuses onto their forward ordering.
func StatusRank(status string) int {
	switch status {
	case MessageStatusSent:
		return 0
	case MessageStatusDelivered:
		return 1
	case MessageStatusRead:
		return 2
	default:
		return -1
	}
}

// StatusUpdate notifies a participant that message statuses advanced.
type StatusUpdate struct {
	ConversationID int    `json:"conversation_id"`
	MessageIDs     []int  `json:"message_ids"`
	Status         string `json:"status"`
}
