package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGet(ctx context.Context, userID int, peerID int) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	List(ctx context.Context, userID int) ([]models.ConversationSummary, error)
	PartnerIDs(ctx context.Context, userID int) ([]int, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGet creates the conversation for an unordered pair if it does not
// already exist. At most one conversation exists per pair.
func (r *ConversationRepo) CreateOrGet(ctx context.Context, userID int, peerID int) (models.Conversation, error) {
	if userID == peerID {
		return models.Conversation{}, errs.Validation("cannot start a conversation with yourself")
	}
	participants := []int{userID, peerID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	var conv models.Conversation
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id=$1 AND user2_id=$2`
	err := r.db.GetContext(ctx, &conv, query, user1, user2)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
        RETURNING id, user1_id, user2_id, created_at`, user1, user2).
		Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt)
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, errs.ErrConversationNotFound
	}
	return conv, err
}

// List returns the conversations the user participates in, newest first.
func (r *ConversationRepo) List(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var conv models.Conversation
		if err := rows.StructScan(&conv); err != nil {
			return nil, err
		}
		result = append(result, models.ConversationSummary{
			ConversationID: conv.ID,
			PeerID:         conv.PeerOf(userID),
			Created:        conv.CreatedAt,
		})
	}
	return result, rows.Err()
}

// PartnerIDs returns the distinct ids of users sharing a conversation with
// userID. Used to scope presence fan-out.
func (r *ConversationRepo) PartnerIDs(ctx context.Context, userID int) ([]int, error) {
	query := `SELECT DISTINCT CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END AS partner_id
        FROM conversations WHERE user1_id=$1 OR user2_id=$1`
	var ids []int
	err := r.db.SelectContext(ctx, &ids, query, userID)
	return ids, err
}
