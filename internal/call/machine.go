// Package call manages the lifecycle of voice call sessions between two
// users: initiate → ring → connect → end, with decline and missed side
// branches, and relays opaque signaling payloads between the parties.
package call

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
	"voicechat-service/internal/observability"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
)

// DefaultRingTimeout bounds how long a call may ring before it resolves to
// missed. Callers may cancel earlier via End.
const DefaultRingTimeout = 45 * time.Second

// OnlineChecker is the presence read the machine needs.
type OnlineChecker interface {
	IsOnline(userID int) bool
}

type pairKey struct {
	A, B int
}

func newPairKey(u1, u2 int) pairKey {
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	return pairKey{A: u1, B: u2}
}

// activeCall is the single-writer apply point for one session: every
// transition takes its mutex, so racing answer/decline/end serialize and
// the first durable transition wins. id is immutable; terminal is an atomic
// mirror of the state so the pair-conflict check never nests locks.
type activeCall struct {
	id       string
	terminal atomic.Bool

	mu        sync.Mutex
	state     models.CallSession
	ringTimer *time.Timer
}

// Machine arbitrates call session state.
type Machine struct {
	repo        repositories.CallRepository
	publisher   router.Publisher
	online      OnlineChecker
	ringTimeout time.Duration

	mu     sync.Mutex
	byID   map[string]*activeCall
	byPair map[pairKey]*activeCall
}

// NewMachine builds a Machine; a zero ringTimeout means DefaultRingTimeout.
func NewMachine(repo repositories.CallRepository, publisher router.Publisher, online OnlineChecker, ringTimeout time.Duration) *Machine {
	if ringTimeout <= 0 {
		ringTimeout = DefaultRingTimeout
	}
	return &Machine{
		repo:        repo,
		publisher:   publisher,
		online:      online,
		ringTimeout: ringTimeout,
		byID:        make(map[string]*activeCall),
		byPair:      make(map[pairKey]*activeCall),
	}
}

// Initiate starts a call attempt. At most one non-terminal session may exist
// per unordered pair; a duplicate is rejected with ConflictError carrying
// the existing session id. The session auto-advances to ringing and the
// recipient is rung if online; an unreachable recipient leaves the session
// ringing until the ring timeout resolves it to missed.
func (m *Machine) Initiate(ctx context.Context, callerID, recipientID, conversationID int) (models.CallSession, error) {
	if callerID == recipientID {
		return models.CallSession{}, errs.Validation("cannot call yourself")
	}

	pair := newPairKey(callerID, recipientID)
	ac := &activeCall{
		id: uuid.NewString(),
	}
	ac.state = models.CallSession{
		ID:             ac.id,
		ConversationID: conversationID,
		CallerID:       callerID,
		RecipientID:    recipientID,
		Status:         models.CallStatusInitiating,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	if existing, ok := m.byPair[pair]; ok && !existing.terminal.Load() {
		m.mu.Unlock()
		return models.CallSession{}, &errs.ConflictError{ActiveCallID: existing.id}
	}
	// Reserve the pair slot before touching storage.
	m.byPair[pair] = ac
	m.byID[ac.id] = ac
	m.mu.Unlock()

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if err := m.repo.Create(ctx, ac.state); err != nil {
		ac.terminal.Store(true)
		m.remove(ac.id, pair)
		return models.CallSession{}, errs.Transient(err)
	}

	ac.state.Status = models.CallStatusRinging
	if err := m.repo.UpdateStatus(ctx, ac.state); err != nil {
		ac.terminal.Store(true)
		m.remove(ac.id, pair)
		return models.CallSession{}, errs.Transient(err)
	}
	observability.IncCallTransition(models.CallStatusRinging)

	callID := ac.state.ID
	ac.ringTimer = time.AfterFunc(m.ringTimeout, func() {
		m.timeout(callID)
	})

	m.broadcastLocked(ctx, ac, models.EventCallRinging)
	if !m.online.IsOnline(recipientID) {
		log.Printf("call %s: recipient %d offline, ringing unanswered", callID, recipientID)
	}
	return ac.state, nil
}

// Answer connects a ringing call. Only the recipient may answer, and only
// from ringing; anything else is an InvalidTransitionError no-op.
func (m *Machine) Answer(ctx context.Context, callID string, userID int) (models.CallSession, error) {
	ac, err := m.lookup(ctx, callID)
	if err != nil {
		return models.CallSession{}, err
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.state.HasParty(userID) {
		return models.CallSession{}, errs.Authorization("not a call participant")
	}
	if ac.state.Status != models.CallStatusRinging || userID != ac.state.RecipientID {
		return models.CallSession{}, &errs.InvalidTransitionError{From: ac.state.Status, Action: "answer"}
	}

	prev := ac.state
	now := time.Now().UTC()
	ac.state.Status = models.CallStatusConnected
	ac.state.AnsweredAt = &now
	if err := m.repo.UpdateStatus(ctx, ac.state); err != nil {
		ac.state = prev
		return models.CallSession{}, errs.Transient(err)
	}
	observability.IncCallTransition(models.CallStatusConnected)

	ac.stopRingTimerLocked()
	m.broadcastLocked(ctx, ac, models.EventCallConnected)
	return ac.state, nil
}

// Decline rejects a ringing call. Only the recipient may decline.
func (m *Machine) Decline(ctx context.Context, callID string, userID int) (models.CallSession, error) {
	ac, err := m.lookup(ctx, callID)
	if err != nil {
		return models.CallSession{}, err
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.state.HasParty(userID) {
		return models.CallSession{}, errs.Authorization("not a call participant")
	}
	if ac.state.Status != models.CallStatusRinging || userID != ac.state.RecipientID {
		return models.CallSession{}, &errs.InvalidTransitionError{From: ac.state.Status, Action: "decline"}
	}

	prev := ac.state
	now := time.Now().UTC()
	ac.state.Status = models.CallStatusDeclined
	ac.state.EndedAt = &now
	if err := m.repo.UpdateStatus(ctx, ac.state); err != nil {
		ac.state = prev
		return models.CallSession{}, errs.Transient(err)
	}
	observability.IncCallTransition(models.CallStatusDeclined)

	ac.terminal.Store(true)
	ac.stopRingTimerLocked()
	m.broadcastLocked(ctx, ac, models.EventCallDeclined)
	state := ac.state
	m.remove(ac.id, newPairKey(state.CallerID, state.RecipientID))
	return state, nil
}

// End terminates a call. Valid from connected for either party, and from
// initiating/ringing for the caller (cancel). Ending an already-terminal
// session is an idempotent no-op returning the resolved state: both parties
// may race to end simultaneously.
func (m *Machine) End(ctx context.Context, callID string, userID int) (models.CallSession, error) {
	ac, err := m.lookup(ctx, callID)
	if err != nil {
		return models.CallSession{}, err
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.state.HasParty(userID) {
		return models.CallSession{}, errs.Authorization("not a call participant")
	}
	if ac.state.Terminal() {
		return ac.state, nil
	}
	if ac.state.Status != models.CallStatusConnected && userID != ac.state.CallerID {
		return models.CallSession{}, &errs.InvalidTransitionError{From: ac.state.Status, Action: "end"}
	}

	prev := ac.state
	now := time.Now().UTC()
	ac.state.Status = models.CallStatusEnded
	ac.state.EndedAt = &now
	if ac.state.AnsweredAt != nil {
		ac.state.DurationSecs = int(now.Sub(*ac.state.AnsweredAt).Seconds())
	}
	if err := m.repo.UpdateStatus(ctx, ac.state); err != nil {
		ac.state = prev
		return models.CallSession{}, errs.Transient(err)
	}
	observability.IncCallTransition(models.CallStatusEnded)

	ac.terminal.Store(true)
	ac.stopRingTimerLocked()
	m.broadcastLocked(ctx, ac, models.EventCallEnded)
	state := ac.state
	m.remove(ac.id, newPairKey(state.CallerID, state.RecipientID))
	return state, nil
}

// RelaySignal forwards an opaque negotiation payload to the other party.
// Signals against a session that is no longer ringing or connected are
// stale and dropped silently.
func (m *Machine) RelaySignal(ctx context.Context, callID string, fromUserID int, payload any) error {
	ac, err := m.lookup(ctx, callID)
	if err != nil {
		return err
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if !ac.state.HasParty(fromUserID) {
		return errs.Authorization("not a call participant")
	}
	if ac.state.Status != models.CallStatusRinging && ac.state.Status != models.CallStatusConnected {
		return nil
	}

	signal := models.CallSignal{CallID: callID, FromUserID: fromUserID, Payload: payload}
	return m.publisher.Publish(ctx, []int{ac.state.PeerOf(fromUserID)}, models.EventCallSignal, callKey(callID), signal)
}

// Get returns the session's current state, consulting storage for sessions
// that already left the active set.
func (m *Machine) Get(ctx context.Context, callID string) (models.CallSession, error) {
	ac, err := m.lookup(ctx, callID)
	if err != nil {
		return models.CallSession{}, err
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.state, nil
}

// timeout resolves a still-ringing call to missed after the bounded wait.
func (m *Machine) timeout(callID string) {
	m.mu.Lock()
	ac, ok := m.byID[callID]
	m.mu.Unlock()
	if !ok {
		return
	}

	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.state.Status != models.CallStatusRinging {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prev := ac.state
	now := time.Now().UTC()
	ac.state.Status = models.CallStatusMissed
	ac.state.EndedAt = &now
	if err := m.repo.UpdateStatus(ctx, ac.state); err != nil {
		ac.state = prev
		log.Printf("call %s: persist missed failed: %v", callID, err)
		return
	}
	observability.IncCallTransition(models.CallStatusMissed)

	ac.terminal.Store(true)
	m.broadcastLocked(ctx, ac, models.EventCallMissed)
	m.remove(ac.id, newPairKey(ac.state.CallerID, ac.state.RecipientID))
}

// lookup finds the active session, falling back to storage for terminal
// ones so idempotent End and stale signals resolve against real state.
func (m *Machine) lookup(ctx context.Context, callID string) (*activeCall, error) {
	m.mu.Lock()
	ac, ok := m.byID[callID]
	m.mu.Unlock()
	if ok {
		return ac, nil
	}

	state, err := m.repo.Get(ctx, callID)
	if err != nil {
		if err == errs.ErrCallNotFound {
			return nil, errs.ErrCallNotFound
		}
		return nil, errs.Transient(err)
	}
	detached := &activeCall{id: state.ID, state: state}
	detached.terminal.Store(state.Terminal())
	return detached, nil
}

// broadcastLocked publishes the session's current status to both parties.
// Called with ac.mu held so event order matches transition order.
func (m *Machine) broadcastLocked(ctx context.Context, ac *activeCall, eventType string) {
	targets := []int{ac.state.CallerID, ac.state.RecipientID}
	if err := m.publisher.Publish(ctx, targets, eventType, callKey(ac.state.ID), ac.state); err != nil {
		log.Printf("call %s: broadcast %s failed: %v", ac.state.ID, eventType, err)
	}
}

func (ac *activeCall) stopRingTimerLocked() {
	if ac.ringTimer != nil {
		ac.ringTimer.Stop()
		ac.ringTimer = nil
	}
}

func (m *Machine) remove(callID string, pair pairKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.byID[callID]; ok {
		delete(m.byID, callID)
		if m.byPair[pair] == cur {
			delete(m.byPair, pair)
		}
	}
}

func callKey(callID string) string {
	return "call:" + callID
}
