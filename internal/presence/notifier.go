package presence

import (
	"context"
	"log"
	"strconv"
	"time"

	"voicechat-service/internal/models"
	"voicechat-service/internal/observability"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
)

const notifyTimeout = 5 * time.Second

// Notifier reacts to registry changes: it persists the new status to the
// presence store and fans a presence:update out to every user sharing a
// conversation with the affected user.
type Notifier struct {
	store     repositories.PresenceStore
	convRepo  repositories.ConversationRepository
	publisher router.Publisher
}

// NewNotifier wires a Notifier to the registry.
func NewNotifier(registry *Registry, store repositories.PresenceStore, convRepo repositories.ConversationRepository, publisher router.Publisher) *Notifier {
	n := &Notifier{store: store, convRepo: convRepo, publisher: publisher}
	registry.Subscribe(n.handle)
	return n
}

func (n *Notifier) handle(change Change) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	presence := models.Presence{
		UserID:   change.UserID,
		Status:   change.Status,
		LastSeen: change.LastSeen,
	}
	if err := n.store.Set(ctx, presence); err != nil {
		log.Printf("presence: persist status for user %d failed: %v", change.UserID, err)
	}

	partners, err := n.convRepo.PartnerIDs(ctx, change.UserID)
	if err != nil {
		log.Printf("presence: partner lookup for user %d failed: %v", change.UserID, err)
		return
	}
	if len(partners) == 0 {
		return
	}

	key := "presence:" + strconv.Itoa(change.UserID)
	if err := n.publisher.Publish(ctx, partners, models.EventPresenceUpdate, key, presence); err != nil {
		log.Printf("presence: broadcast for user %d failed: %v", change.UserID, err)
	}
	observability.IncPresenceChange(change.Status)
}
