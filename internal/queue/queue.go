// Package queue buffers outbound events for disconnected users and replays
// them on reconnect. Retention is time-bounded: events older than the
// configured window are dropped on drain and must be recovered through a
// full resync against storage.
package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"voicechat-service/internal/models"
)

// DefaultRetention bounds how long an offline user's events are kept.
const DefaultRetention = 10 * time.Minute

// Manager is the reconnection delivery-queue contract.
type Manager interface {
	// Enqueue buffers one envelope for an offline user.
	Enqueue(ctx context.Context, userID int, env models.Envelope) error
	// Drain returns the user's buffered envelopes in sequence order,
	// dropping entries older than the retention window, and clears the
	// buffer.
	Drain(ctx context.Context, userID int) ([]models.Envelope, error)
}

// MemoryQueue is an in-process Manager for tests and single-node runs.
type MemoryQueue struct {
	mu        sync.Mutex
	buffers   map[int][]models.Envelope
	retention time.Duration
	now       func() time.Time
}

// NewMemoryQueue builds a MemoryQueue with the given retention window;
// zero means DefaultRetention.
func NewMemoryQueue(retention time.Duration) *MemoryQueue {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryQueue{
		buffers:   make(map[int][]models.Envelope),
		retention: retention,
		now:       time.Now,
	}
}

// Enqueue appends the envelope to the user's buffer.
func (q *MemoryQueue) Enqueue(ctx context.Context, userID int, env models.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffers[userID] = append(q.buffers[userID], env)
	return nil
}

// Drain returns fresh envelopes in sequence order and clears the buffer.
func (q *MemoryQueue) Drain(ctx context.Context, userID int) ([]models.Envelope, error) {
	q.mu.Lock()
	buffered := q.buffers[userID]
	delete(q.buffers, userID)
	q.mu.Unlock()

	cutoff := q.now().Add(-q.retention)
	fresh := buffered[:0]
	for _, env := range buffered {
		if env.QueuedAt.After(cutoff) {
			fresh = append(fresh, env)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Seq < fresh[j].Seq })
	return fresh, nil
}
