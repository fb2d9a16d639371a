package models

import "time"

// Declared presence statuses.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// Presence is a user's last-known status.
type Presence struct {
	UserID   int       `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// ValidPresenceStatus reports whether status is one of the declared values.
func ValidPresenceStatus(status string) bool {
	switch status {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}
