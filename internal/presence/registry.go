// Package presence tracks which users currently hold live connections and
// their declared status. The registry is the only shared resource read by
// every other component; writes happen solely through the connect,
// disconnect and status-change paths and are serialized per user.
package presence

import (
	"sync"
	"time"

	"voicechat-service/internal/models"
	"voicechat-service/internal/router"
)

// Change describes one presence transition, delivered to subscribers.
type Change struct {
	UserID   int
	Status   string
	LastSeen time.Time
}

// Registry owns the in-memory session table. A user may hold several
// simultaneous session handles (devices, tabs); the user is online iff at
// least one handle is registered.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]map[string]router.Session
	statuses map[int]string
	lastSeen map[int]time.Time
	subs     []func(Change)
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int]map[string]router.Session),
		statuses: make(map[int]string),
		lastSeen: make(map[int]time.Time),
	}
}

// Subscribe registers a callback invoked after every status change.
// Callbacks run outside the registry lock.
func (r *Registry) Subscribe(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Connect registers a session handle. The first handle for a user flips
// their status to online unless they had declared away.
func (r *Registry) Connect(userID int, session router.Session) {
	r.mu.Lock()
	if _, ok := r.sessions[userID]; !ok {
		r.sessions[userID] = make(map[string]router.Session)
	}
	r.sessions[userID][session.ID()] = session

	// A declared away survives additional connections; only unset or
	// offline flips to online.
	var change Change
	notify := false
	if cur, ok := r.statuses[userID]; !ok || cur == models.PresenceOffline {
		change, notify = r.applyStatusLocked(userID, models.PresenceOnline)
	}
	r.mu.Unlock()

	if notify {
		r.notify(change)
	}
}

// Disconnect removes a session handle. When the last handle goes, status
// transitions to offline immediately; there is no grace period.
func (r *Registry) Disconnect(userID int, sessionID string) {
	r.mu.Lock()
	if handles, ok := r.sessions[userID]; ok {
		delete(handles, sessionID)
		if len(handles) == 0 {
			delete(r.sessions, userID)
		}
	}

	var change Change
	notify := false
	if _, stillOnline := r.sessions[userID]; !stillOnline {
		change, notify = r.applyStatusLocked(userID, models.PresenceOffline)
	}
	r.mu.Unlock()

	if notify {
		r.notify(change)
	}
}

// SetStatus records an explicit status change (online/away). Declaring a
// status while holding no connection is ignored except for offline, which
// is already the resting state.
func (r *Registry) SetStatus(userID int, status string) {
	r.mu.Lock()
	if _, connected := r.sessions[userID]; !connected && status != models.PresenceOffline {
		r.mu.Unlock()
		return
	}
	change, notify := r.applyStatusLocked(userID, status)
	r.mu.Unlock()

	if notify {
		r.notify(change)
	}
}

// applyStatusLocked records the transition; caller holds r.mu.
func (r *Registry) applyStatusLocked(userID int, status string) (Change, bool) {
	if r.statuses[userID] == status {
		return Change{}, false
	}
	r.statuses[userID] = status
	now := time.Now().UTC()
	r.lastSeen[userID] = now
	return Change{UserID: userID, Status: status, LastSeen: now}, true
}

func (r *Registry) notify(change Change) {
	r.mu.RLock()
	subs := make([]func(Change), len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

// IsOnline reports whether the user holds at least one live session.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// Sessions returns the user's live session handles.
func (r *Registry) Sessions(userID int) []router.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]router.Session, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		handles = append(handles, s)
	}
	return handles
}

// Status returns the user's last-known status and last-seen timestamp.
func (r *Registry) Status(userID int) (string, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.statuses[userID]
	if !ok {
		status = models.PresenceOffline
	}
	return status, r.lastSeen[userID]
}

var _ router.Registry = (*Registry)(nil)
