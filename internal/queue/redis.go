package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"voicechat-service/internal/models"
)

const queueKeyPrefix = "delivery:queue:"

// RedisQueue keeps per-user envelope lists under delivery:queue:<id>. The
// key itself expires after the retention window so buffers for users who
// never return do not accumulate.
type RedisQueue struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisQueue builds a RedisQueue with the given retention window; zero
// means DefaultRetention.
func NewRedisQueue(client *redis.Client, retention time.Duration) *RedisQueue {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisQueue{client: client, retention: retention}
}

// Enqueue appends the envelope to the user's list and refreshes its expiry.
func (q *RedisQueue) Enqueue(ctx context.Context, userID int, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	key := queueKey(userID)
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, q.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue envelope: %w", err)
	}
	return nil
}

// Drain atomically reads and clears the user's buffer, dropping envelopes
// older than the retention window, in sequence order.
func (q *RedisQueue) Drain(ctx context.Context, userID int) ([]models.Envelope, error) {
	key := queueKey(userID)
	pipe := q.client.TxPipeline()
	list := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain queue: %w", err)
	}

	raw, err := list.Result()
	if err != nil {
		return nil, fmt.Errorf("drain queue: %w", err)
	}

	cutoff := time.Now().Add(-q.retention)
	envelopes := make([]models.Envelope, 0, len(raw))
	for _, item := range raw {
		var env models.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			continue
		}
		if env.QueuedAt.After(cutoff) {
			envelopes = append(envelopes, env)
		}
	}
	sort.Slice(envelopes, func(i, j int) bool { return envelopes[i].Seq < envelopes[j].Seq })
	return envelopes, nil
}

func queueKey(userID int) string {
	return queueKeyPrefix + strconv.Itoa(userID)
}
