package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
)

// CallRepository persists call session state transitions.
type CallRepository interface {
	Create(ctx context.Context, session models.CallSession) error
	Get(ctx context.Context, callID string) (models.CallSession, error)
	UpdateStatus(ctx context.Context, session models.CallSession) error
}

// CallRepo is a sqlx implementation of CallRepository.
type CallRepo struct {
	db *sqlx.DB
}

// NewCallRepo constructs a CallRepo.
func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{db: db}
}

// Create inserts a new call session row.
func (r *CallRepo) Create(ctx context.Context, session models.CallSession) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO call_sessions
        (id, conversation_id, caller_id, recipient_id, status, created_at, duration_secs)
        VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		session.ID, session.ConversationID, session.CallerID, session.RecipientID,
		session.Status, session.CreatedAt)
	return err
}

// Get fetches a call session by id.
func (r *CallRepo) Get(ctx context.Context, callID string) (models.CallSession, error) {
	var session models.CallSession
	err := r.db.GetContext(ctx, &session, `SELECT id, conversation_id, caller_id, recipient_id,
        status, created_at, answered_at, ended_at, duration_secs
        FROM call_sessions WHERE id=$1`, callID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CallSession{}, errs.ErrCallNotFound
	}
	return session, err
}

// UpdateStatus writes the session's current status and timestamps.
func (r *CallRepo) UpdateStatus(ctx context.Context, session models.CallSession) error {
	res, err := r.db.ExecContext(ctx, `UPDATE call_sessions
        SET status=$2, answered_at=$3, ended_at=$4, duration_secs=$5
        WHERE id=$1`,
		session.ID, session.Status, session.AnsweredAt, session.EndedAt, session.DurationSecs)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return errs.ErrCallNotFound
	}
	return nil
}
