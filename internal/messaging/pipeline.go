// Package messaging implements the message delivery pipeline: submit,
// delivery-status promotion, read receipts, edit and delete, all broadcast
// to conversation participants after the durable commit.
package messaging

import (
	"context"
	"log"
	"strconv"
	"strings"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
	"voicechat-service/internal/syncutil"
)

// OnlineChecker is the presence read the pipeline needs to decide between
// delivered and queued.
type OnlineChecker interface {
	IsOnline(userID int) bool
}

// TypingStopper clears a sender's typing indicator: sending a message means
// the sender stopped typing.
type TypingStopper interface {
	Stop(ctx context.Context, conv models.Conversation, userID int) error
}

// Pipeline coordinates message state. Operations on the same conversation
// are serialized by a keyed mutex so status upgrades never interleave;
// different conversations proceed in parallel.
type Pipeline struct {
	convRepo  repositories.ConversationRepository
	msgRepo   repositories.MessageRepository
	publisher router.Publisher
	online    OnlineChecker
	typing    TypingStopper
	locks     *syncutil.KeyedMutex
}

// NewPipeline builds a Pipeline. typing may be nil.
func NewPipeline(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, publisher router.Publisher, online OnlineChecker, typing TypingStopper) *Pipeline {
	return &Pipeline{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		publisher: publisher,
		online:    online,
		typing:    typing,
		locks:     syncutil.NewKeyedMutex(),
	}
}

// Submit accepts a new message, persists it and broadcasts it to both
// participants. If the recipient is online the message is promoted to
// delivered before anyone observes it, so no observer ever sees a stale
// sent status for a delivered message.
func (p *Pipeline) Submit(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, errs.Validation("message content is empty")
	}

	conv, err := p.convRepo.Get(ctx, conversationID)
	if err != nil {
		if err == errs.ErrConversationNotFound {
			return models.Message{}, err
		}
		return models.Message{}, errs.Transient(err)
	}
	if !conv.HasParticipant(senderID) {
		return models.Message{}, errs.Authorization("sender is not a conversation participant")
	}

	key := conversationKey(conversationID)
	p.locks.Lock(key)
	defer p.locks.Unlock(key)

	msg, err := p.msgRepo.Create(ctx, conversationID, senderID, content)
	if err != nil {
		return models.Message{}, errs.Transient(err)
	}

	// A send implies the sender stopped typing; the stop goes out ahead of
	// the message so the peer never sees both at once.
	if p.typing != nil {
		if err := p.typing.Stop(ctx, conv, senderID); err != nil {
			log.Printf("messaging: clear typing for sender %d in conversation %d failed: %v", senderID, conversationID, err)
		}
	}

	recipient := conv.PeerOf(senderID)
	if p.online.IsOnline(recipient) {
		if err := p.msgRepo.MarkDelivered(ctx, []int{msg.ID}); err != nil {
			// The message is durable; leave it in sent and let the
			// recipient's next connect hook promote it.
			log.Printf("messaging: promote message %d failed: %v", msg.ID, err)
		} else {
			msg.Status = models.MessageStatusDelivered
		}
	}

	if err := p.publisher.Publish(ctx, []int{conv.User1ID, conv.User2ID}, models.EventMessageNew, key, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// PromotePending runs on the connect hook: every 'sent' message addressed
// to the user, across all of their conversations, is promoted to delivered
// and the senders are notified.
func (p *Pipeline) PromotePending(ctx context.Context, userID int) error {
	pending, err := p.msgRepo.PendingForRecipient(ctx, userID)
	if err != nil {
		return errs.Transient(err)
	}
	if len(pending) == 0 {
		return nil
	}

	byConversation := make(map[int][]models.Message)
	for _, msg := range pending {
		byConversation[msg.ConversationID] = append(byConversation[msg.ConversationID], msg)
	}

	for conversationID, msgs := range byConversation {
		key := conversationKey(conversationID)
		p.locks.Lock(key)

		ids := make([]int, 0, len(msgs))
		for _, msg := range msgs {
			ids = append(ids, msg.ID)
		}
		if err := p.msgRepo.MarkDelivered(ctx, ids); err != nil {
			p.locks.Unlock(key)
			return errs.Transient(err)
		}

		update := models.StatusUpdate{
			ConversationID: conversationID,
			MessageIDs:     ids,
			Status:         models.MessageStatusDelivered,
		}
		// All pending messages of one conversation share one sender: the
		// other participant.
		sender := msgs[0].SenderID
		err := p.publisher.Publish(ctx, []int{sender}, models.EventMessageStatus, key, update)
		p.locks.Unlock(key)
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkRead transitions every message not authored by the reader and not
// already read to 'read', as one batch. Idempotent: with nothing eligible
// there is no state change and no broadcast.
func (p *Pipeline) MarkRead(ctx context.Context, conversationID int, readerID int) error {
	conv, err := p.convRepo.Get(ctx, conversationID)
	if err != nil {
		if err == errs.ErrConversationNotFound {
			return err
		}
		return errs.Transient(err)
	}
	if !conv.HasParticipant(readerID) {
		return errs.Authorization("reader is not a conversation participant")
	}

	key := conversationKey(conversationID)
	p.locks.Lock(key)
	defer p.locks.Unlock(key)

	ids, err := p.msgRepo.MarkReadBatch(ctx, conversationID, readerID)
	if err != nil {
		return errs.Transient(err)
	}
	if len(ids) == 0 {
		return nil
	}

	update := models.StatusUpdate{
		ConversationID: conversationID,
		MessageIDs:     ids,
		Status:         models.MessageStatusRead,
	}
	return p.publisher.Publish(ctx, []int{conv.PeerOf(readerID)}, models.EventMessageStatus, key, update)
}

// Edit replaces a message's content. Only the original sender may edit.
func (p *Pipeline) Edit(ctx context.Context, messageID int, editorID int, newContent string) (models.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return models.Message{}, errs.Validation("message content is empty")
	}

	msg, err := p.msgRepo.Get(ctx, messageID)
	if err != nil {
		if err == errs.ErrMessageNotFound {
			return models.Message{}, err
		}
		return models.Message{}, errs.Transient(err)
	}
	if msg.SenderID != editorID {
		return models.Message{}, errs.Authorization("only the sender may edit a message")
	}

	key := conversationKey(msg.ConversationID)
	p.locks.Lock(key)
	defer p.locks.Unlock(key)

	updated, err := p.msgRepo.UpdateContent(ctx, messageID, newContent)
	if err != nil {
		if err == errs.ErrMessageNotFound {
			return models.Message{}, err
		}
		return models.Message{}, errs.Transient(err)
	}

	conv, err := p.convRepo.Get(ctx, msg.ConversationID)
	if err != nil {
		return models.Message{}, errs.Transient(err)
	}
	if err := p.publisher.Publish(ctx, []int{conv.PeerOf(editorID)}, models.EventMessageUpdated, key, updated); err != nil {
		return models.Message{}, err
	}
	return updated, nil
}

// Delete removes a message. Only the original sender may delete.
func (p *Pipeline) Delete(ctx context.Context, messageID int, actorID int) error {
	msg, err := p.msgRepo.Get(ctx, messageID)
	if err != nil {
		if err == errs.ErrMessageNotFound {
			return err
		}
		return errs.Transient(err)
	}
	if msg.SenderID != actorID {
		return errs.Authorization("only the sender may delete a message")
	}

	key := conversationKey(msg.ConversationID)
	p.locks.Lock(key)
	defer p.locks.Unlock(key)

	if err := p.msgRepo.Delete(ctx, messageID); err != nil {
		if err == errs.ErrMessageNotFound {
			return err
		}
		return errs.Transient(err)
	}

	conv, err := p.convRepo.Get(ctx, msg.ConversationID)
	if err != nil {
		return errs.Transient(err)
	}
	removed := models.MessageDeleted{ConversationID: msg.ConversationID, MessageID: messageID}
	return p.publisher.Publish(ctx, []int{conv.PeerOf(actorID)}, models.EventMessageDeleted, key, removed)
}

func conversationKey(conversationID int) string {
	return "conversation:" + strconv.Itoa(conversationID)
}
