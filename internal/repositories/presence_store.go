package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"voicechat-service/internal/models"
)

const presenceKeyPrefix = "presence:"

// PresenceStore persists last-known presence for offline lookups.
type PresenceStore interface {
	Set(ctx context.Context, presence models.Presence) error
	Get(ctx context.Context, userID int) (models.Presence, error)
}

// RedisPresenceStore keeps one JSON record per user under presence:<id>.
type RedisPresenceStore struct {
	client *redis.Client
}

// NewRedisPresenceStore constructs a RedisPresenceStore.
func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

// Set stores the user's status and last-seen timestamp. No TTL: offline is
// an explicit status written on disconnect, not an expiry side effect.
func (s *RedisPresenceStore) Set(ctx context.Context, presence models.Presence) error {
	presence.LastSeen = presence.LastSeen.UTC()
	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if err := s.client.Set(ctx, presenceKey(presence.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

// Get returns the stored presence; a missing key reads as offline.
func (s *RedisPresenceStore) Get(ctx context.Context, userID int) (models.Presence, error) {
	data, err := s.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return models.Presence{UserID: userID, Status: models.PresenceOffline}, nil
	}
	if err != nil {
		return models.Presence{}, fmt.Errorf("get presence: %w", err)
	}

	var presence models.Presence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return models.Presence{}, fmt.Errorf("unmarshal presence: %w", err)
	}
	return presence, nil
}

func presenceKey(userID int) string {
	return presenceKeyPrefix + strconv.Itoa(userID)
}
