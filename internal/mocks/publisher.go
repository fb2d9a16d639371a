package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"voicechat-service/internal/router"
	"voicechat-service/internal/telemetry"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ telemetry.Publisher = (*PublisherMock)(nil)

// PublishedEvent is one broadcast captured by RecordingPublisher.
type PublishedEvent struct {
	Targets   []int
	EventType string
	Key       string
	Payload   any
}

// RecordingPublisher captures broadcasts for assertion instead of routing
// them. Err, when set, is returned from every Publish.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, targetIDs []int, eventType string, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	targets := make([]int, len(targetIDs))
	copy(targets, targetIDs)
	p.Events = append(p.Events, PublishedEvent{
		Targets:   targets,
		EventType: eventType,
		Key:       key,
		Payload:   payload,
	})
	return nil
}

// ByType returns the captured events of one type, in publish order.
func (p *RecordingPublisher) ByType(eventType string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, ev := range p.Events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

var _ router.Publisher = (*RecordingPublisher)(nil)
