// Package router fans broadcast events out to the live sessions of a set of
// target users, handing envelopes for offline targets to the reconnection
// queue. Delivery to one target is ordered relative to every other event
// published for that target; nothing is promised across targets.
package router

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
	"voicechat-service/internal/observability"
	"voicechat-service/internal/queue"
)

// Session is one live connection handle for a user.
type Session interface {
	ID() string
	Deliver(env models.Envelope) error
	// ResumeSeq is the highest sequence number the client confirmed before
	// this connection was established; replay skips anything at or below it.
	ResumeSeq() uint64
	Close()
}

// Registry is the subset of the presence registry the router reads.
type Registry interface {
	IsOnline(userID int) bool
	Sessions(userID int) []Session
}

// Publisher is the broadcast contract the domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, targetIDs []int, eventType string, key string, payload any) error
}

// Router is the shared fan-out mechanism.
type Router struct {
	registry Registry
	queue    queue.Manager

	mu      sync.Mutex
	streams map[int]*stream
}

// stream serializes deliveries for one target and owns its sequence counter.
type stream struct {
	mu  sync.Mutex
	seq uint64
}

// New constructs a Router.
func New(registry Registry, q queue.Manager) *Router {
	return &Router{
		registry: registry,
		queue:    q,
		streams:  make(map[int]*stream),
	}
}

func (r *Router) stream(userID int) *stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[userID]
	if !ok {
		s = &stream{}
		r.streams[userID] = s
	}
	return s
}

// Publish delivers one event to every target. Online targets receive it on
// all of their live sessions (multi-device fan-out); offline targets get it
// buffered. A session whose write fails is closed and the envelope falls
// back to the queue so the event is not lost.
func (r *Router) Publish(ctx context.Context, targetIDs []int, eventType string, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var firstErr error
	for _, target := range targetIDs {
		st := r.stream(target)
		st.mu.Lock()
		st.seq++
		env := models.Envelope{
			Seq:      st.seq,
			Type:     eventType,
			Key:      key,
			Payload:  raw,
			QueuedAt: time.Now().UTC(),
		}

		if err := r.deliverLocked(ctx, target, env); err != nil && firstErr == nil {
			firstErr = err
		}
		st.mu.Unlock()
		observability.IncEventPublished(eventType)
	}
	return firstErr
}

func (r *Router) deliverLocked(ctx context.Context, target int, env models.Envelope) error {
	if r.registry.IsOnline(target) {
		delivered := false
		for _, session := range r.registry.Sessions(target) {
			if err := session.Deliver(env); err != nil {
				log.Printf("router: delivery to user %d session %s failed: %v", target, session.ID(), err)
				session.Close()
				continue
			}
			delivered = true
		}
		if delivered {
			return nil
		}
		// Every handle failed; treat the target as offline for this event.
	}

	if err := r.queue.Enqueue(ctx, target, env); err != nil {
		return errs.Transient(err)
	}
	observability.IncEventQueued(env.Type)
	return nil
}

// Resume attaches a freshly connected session: register runs under the
// user's stream lock, then the buffered backlog is replayed. Holding the
// lock across both steps means a concurrent Publish cannot slip a newer
// envelope onto the session ahead of the older queued ones.
func (r *Router) Resume(ctx context.Context, userID int, session Session, register func()) error {
	st := r.stream(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if register != nil {
		register()
	}
	return r.replayLocked(ctx, userID, session)
}

// Replay drains the user's buffered envelopes into the freshly connected
// session in sequence order, skipping anything the client already saw.
func (r *Router) Replay(ctx context.Context, userID int, session Session) error {
	return r.Resume(ctx, userID, session, nil)
}

func (r *Router) replayLocked(ctx context.Context, userID int, session Session) error {
	envelopes, err := r.queue.Drain(ctx, userID)
	if err != nil {
		return errs.Transient(err)
	}

	for _, env := range envelopes {
		if env.Seq <= session.ResumeSeq() {
			continue
		}
		if err := session.Deliver(env); err != nil {
			// Push the rest back so the next reconnect can retry.
			for _, rest := range envelopes {
				if rest.Seq >= env.Seq {
					if qerr := r.queue.Enqueue(ctx, userID, rest); qerr != nil {
						log.Printf("router: requeue for user %d failed: %v", userID, qerr)
					}
				}
			}
			return errs.Transient(err)
		}
		observability.IncEventReplayed(env.Type)
	}
	return nil
}
