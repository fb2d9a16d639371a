package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
)

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error)
	ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	MarkDelivered(ctx context.Context, messageIDs []int) error
	// PendingForRecipient returns messages still in 'sent' addressed to
	// userID across all of their conversations, in creation order.
	PendingForRecipient(ctx context.Context, userID int) ([]models.Message, error)
	// MarkReadBatch advances every peer-authored, non-read message of the
	// conversation to 'read' and returns the ids it changed.
	MarkReadBatch(ctx context.Context, conversationID int, readerID int) ([]int, error)
	UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error)
	Delete(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create stores a message with initial status 'sent'.
func (r *MessageRepo) Create(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content, status)
        VALUES ($1, $2, $3, 'sent')
        RETURNING id, conversation_id, sender_id, content, status, edited, created_at`,
		conversationID, senderID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Status, &msg.Edited, &msg.CreatedAt)
	return msg, err
}

// ListForConversation returns messages in creation order, ties broken by id.
func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, content, status, edited, created_at
        FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at ASC, id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, conversation_id, sender_id, content, status, edited, created_at
        FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, errs.ErrMessageNotFound
	}
	return msg, err
}

// MarkDelivered advances the named messages to 'delivered'. Messages already
// delivered or read are untouched, so re-application is a no-op.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageIDs []int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET status='delivered'
        WHERE id = ANY($1) AND status='sent'`, pq.Array(messageIDs))
	return err
}

// PendingForRecipient finds 'sent' messages addressed to userID.
func (r *MessageRepo) PendingForRecipient(ctx context.Context, userID int) ([]models.Message, error) {
	query := `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.status, m.edited, m.created_at
        FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE m.status='sent' AND m.sender_id <> $1 AND (c.user1_id=$1 OR c.user2_id=$1)
        ORDER BY m.created_at ASC, m.id ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, userID)
	return msgs, err
}

// MarkReadBatch advances eligible messages to 'read' atomically.
func (r *MessageRepo) MarkReadBatch(ctx context.Context, conversationID int, readerID int) ([]int, error) {
	query := `UPDATE messages SET status='read'
        WHERE conversation_id=$1 AND sender_id <> $2 AND status <> 'read'
        RETURNING id`
	var ids []int
	err := r.db.SelectContext(ctx, &ids, query, conversationID, readerID)
	return ids, err
}

// UpdateContent replaces the content and flags the message edited.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, edited=TRUE WHERE id=$1
        RETURNING id, conversation_id, sender_id, content, status, edited, created_at`,
		messageID, content).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Status, &msg.Edited, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, errs.ErrMessageNotFound
	}
	return msg, err
}

// Delete removes the message row.
func (r *MessageRepo) Delete(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return errs.ErrMessageNotFound
	}
	return nil
}
