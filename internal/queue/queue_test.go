package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voicechat-service/internal/models"
)

func envelope(seq uint64, queuedAt time.Time) models.Envelope {
	return models.Envelope{
		Seq:      seq,
		Type:     models.EventMessageNew,
		Key:      "conversation:1",
		QueuedAt: queuedAt,
	}
}

func TestMemoryQueueDrainInSequenceOrder(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, 7, envelope(3, now)))
	require.NoError(t, q.Enqueue(ctx, 7, envelope(1, now)))
	require.NoError(t, q.Enqueue(ctx, 7, envelope(2, now)))

	envs, err := q.Drain(ctx, 7)
	require.NoError(t, err)
	require.Len(t, envs, 3)
	require.Equal(t, uint64(1), envs[0].Seq)
	require.Equal(t, uint64(2), envs[1].Seq)
	require.Equal(t, uint64(3), envs[2].Seq)
}

func TestMemoryQueueDrainClearsBuffer(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 7, envelope(1, time.Now())))

	first, err := q.Drain(ctx, 7)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := q.Drain(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, second)
}

func TestMemoryQueueDropsExpiredEnvelopes(t *testing.T) {
	q := NewMemoryQueue(10 * time.Minute)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, q.Enqueue(ctx, 7, envelope(1, base.Add(-15*time.Minute))))
	require.NoError(t, q.Enqueue(ctx, 7, envelope(2, base.Add(-time.Minute))))

	q.now = func() time.Time { return base }

	envs, err := q.Drain(ctx, 7)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, uint64(2), envs[0].Seq)
}

func TestMemoryQueueIsolatesUsers(t *testing.T) {
	q := NewMemoryQueue(0)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, 1, envelope(1, now)))
	require.NoError(t, q.Enqueue(ctx, 2, envelope(1, now)))

	envs, err := q.Drain(ctx, 1)
	require.NoError(t, err)
	require.Len(t, envs, 1)

	envs, err = q.Drain(ctx, 2)
	require.NoError(t, err)
	require.Len(t, envs, 1)
}
