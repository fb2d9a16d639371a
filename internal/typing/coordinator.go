// Package typing coordinates the short-lived per-(conversation,user) typing
// indicators. Indicators expire 10 seconds after the last refresh; explicit
// stop, message send and disconnect clear them earlier.
package typing

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"voicechat-service/internal/models"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
)

// DefaultExpiry is the hard expiry after the last refresh.
const DefaultExpiry = 10 * time.Second

// key identifies one indicator.
type key struct {
	ConversationID int
	UserID         int
}

// Coordinator owns the timer map. All mutations of one indicator are
// serialized under the coordinator mutex so refresh, stop and expiry never
// interleave inconsistently.
type Coordinator struct {
	publisher router.Publisher
	repo      repositories.TypingRepository
	expiry    time.Duration

	mu     sync.Mutex
	timers map[key]*time.Timer
}

// NewCoordinator builds a Coordinator; a zero expiry means DefaultExpiry.
func NewCoordinator(publisher router.Publisher, repo repositories.TypingRepository, expiry time.Duration) *Coordinator {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Coordinator{
		publisher: publisher,
		repo:      repo,
		expiry:    expiry,
		timers:    make(map[key]*time.Timer),
	}
}

// Start upserts the indicator and (re)arms its expiry timer. A typing:start
// is broadcast only when no live indicator existed; refreshes are silent.
func (c *Coordinator) Start(ctx context.Context, conv models.Conversation, userID int) error {
	k := key{ConversationID: conv.ID, UserID: userID}

	c.mu.Lock()
	timer, existed := c.timers[k]
	if existed {
		timer.Stop()
	}
	peer := conv.PeerOf(userID)
	var armed *time.Timer
	armed = time.AfterFunc(c.expiry, func() {
		c.expire(k, peer, armed)
	})
	c.timers[k] = armed
	c.mu.Unlock()

	if err := c.repo.Upsert(ctx, conv.ID, userID); err != nil {
		log.Printf("typing: persist indicator (%d,%d) failed: %v", conv.ID, userID, err)
	}

	if existed {
		return nil
	}
	return c.publisher.Publish(ctx, []int{peer}, models.EventTypingStart,
		conversationKey(conv.ID), models.TypingEvent{ConversationID: conv.ID, UserID: userID})
}

// Stop clears the indicator and broadcasts typing:stop once. Stopping an
// indicator that does not exist is a silent no-op.
func (c *Coordinator) Stop(ctx context.Context, conv models.Conversation, userID int) error {
	k := key{ConversationID: conv.ID, UserID: userID}

	c.mu.Lock()
	timer, existed := c.timers[k]
	if existed {
		timer.Stop()
		delete(c.timers, k)
	}
	c.mu.Unlock()

	if !existed {
		return nil
	}

	if err := c.repo.Delete(ctx, conv.ID, userID); err != nil {
		log.Printf("typing: delete indicator (%d,%d) failed: %v", conv.ID, userID, err)
	}
	return c.publisher.Publish(ctx, []int{conv.PeerOf(userID)}, models.EventTypingStop,
		conversationKey(conv.ID), models.TypingEvent{ConversationID: conv.ID, UserID: userID})
}

// StopAllFor clears every indicator the user holds, as if they had stopped
// typing in each conversation. Used by the disconnect hook so an unclean
// disconnect cannot leave a partner watching a phantom indicator.
func (c *Coordinator) StopAllFor(ctx context.Context, userID int, peerOf func(conversationID int) (int, bool)) {
	c.mu.Lock()
	var held []key
	for k, timer := range c.timers {
		if k.UserID == userID {
			timer.Stop()
			delete(c.timers, k)
			held = append(held, k)
		}
	}
	c.mu.Unlock()

	for _, k := range held {
		if err := c.repo.Delete(ctx, k.ConversationID, k.UserID); err != nil {
			log.Printf("typing: delete indicator (%d,%d) failed: %v", k.ConversationID, k.UserID, err)
		}
		peer, ok := peerOf(k.ConversationID)
		if !ok {
			continue
		}
		if err := c.publisher.Publish(ctx, []int{peer}, models.EventTypingStop,
			conversationKey(k.ConversationID), models.TypingEvent{ConversationID: k.ConversationID, UserID: userID}); err != nil {
			log.Printf("typing: stop broadcast (%d,%d) failed: %v", k.ConversationID, userID, err)
		}
	}
}

// expire fires when the timer elapses with no refresh. The indicator is
// removed and typing:stop goes out exactly once, even if the originating
// client disconnected uncleanly.
func (c *Coordinator) expire(k key, peer int, self *time.Timer) {
	c.mu.Lock()
	current, live := c.timers[k]
	if !live || current != self {
		// Raced with an explicit Stop or a refresh; nothing to do here.
		c.mu.Unlock()
		return
	}
	delete(c.timers, k)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.repo.Delete(ctx, k.ConversationID, k.UserID); err != nil {
		log.Printf("typing: delete expired indicator (%d,%d) failed: %v", k.ConversationID, k.UserID, err)
	}
	if err := c.publisher.Publish(ctx, []int{peer}, models.EventTypingStop,
		conversationKey(k.ConversationID), models.TypingEvent{ConversationID: k.ConversationID, UserID: k.UserID}); err != nil {
		log.Printf("typing: expiry broadcast (%d,%d) failed: %v", k.ConversationID, k.UserID, err)
	}
}

// Active reports whether a live indicator exists for (conversation, user).
func (c *Coordinator) Active(conversationID int, userID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.timers[key{ConversationID: conversationID, UserID: userID}]
	return ok
}

func conversationKey(conversationID int) string {
	return "conversation:" + strconv.Itoa(conversationID)
}
