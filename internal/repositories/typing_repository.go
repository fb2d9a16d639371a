package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TypingRepository mirrors the coordinator's ephemeral indicators into
// storage. Liveness decisions always come from the coordinator's timers,
// never from these rows.
type TypingRepository interface {
	Upsert(ctx context.Context, conversationID int, userID int) error
	Delete(ctx context.Context, conversationID int, userID int) error
}

// TypingRepo is a sqlx implementation of TypingRepository.
type TypingRepo struct {
	db *sqlx.DB
}

// NewTypingRepo constructs a TypingRepo.
func NewTypingRepo(db *sqlx.DB) *TypingRepo {
	return &TypingRepo{db: db}
}

// Upsert refreshes the indicator row for (conversation, user).
func (r *TypingRepo) Upsert(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO typing_indicators (conversation_id, user_id, refreshed_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (conversation_id, user_id) DO UPDATE SET refreshed_at = NOW()`,
		conversationID, userID)
	return err
}

// Delete removes the indicator row if present.
func (r *TypingRepo) Delete(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM typing_indicators WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	return err
}
