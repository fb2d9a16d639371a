package typing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voicechat-service/internal/mocks"
	"voicechat-service/internal/models"
)

func newTestCoordinator(expiry time.Duration) (*Coordinator, *mocks.RecordingPublisher, *mocks.TypingRepositoryMock) {
	publisher := &mocks.RecordingPublisher{}
	repo := new(mocks.TypingRepositoryMock)
	repo.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return NewCoordinator(publisher, repo, expiry), publisher, repo
}

var testConv = models.Conversation{ID: 1, User1ID: 1, User2ID: 2}

func TestStartBroadcastsOnce(t *testing.T) {
	c, publisher, _ := newTestCoordinator(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testConv, 1))
	require.True(t, c.Active(1, 1))

	starts := publisher.ByType(models.EventTypingStart)
	require.Len(t, starts, 1)
	require.Equal(t, []int{2}, starts[0].Targets)
}

func TestRefreshIsSilent(t *testing.T) {
	c, publisher, _ := newTestCoordinator(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testConv, 1))
	require.NoError(t, c.Start(ctx, testConv, 1))
	require.NoError(t, c.Start(ctx, testConv, 1))

	require.Len(t, publisher.ByType(models.EventTypingStart), 1)
}

func TestStopBroadcastsAndClears(t *testing.T) {
	c, publisher, _ := newTestCoordinator(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testConv, 1))
	require.NoError(t, c.Stop(ctx, testConv, 1))

	require.False(t, c.Active(1, 1))
	stops := publisher.ByType(models.EventTypingStop)
	require.Len(t, stops, 1)
	require.Equal(t, []int{2}, stops[0].Targets)
}

func TestStopWithoutIndicatorIsNoOp(t *testing.T) {
	c, publisher, _ := newTestCoordinator(time.Minute)

	require.NoError(t, c.Stop(context.Background(), testConv, 1))
	require.Empty(t, publisher.ByType(models.EventTypingStop))
}

func TestIndicatorExpires(t *testing.T) {
	c, publisher, _ := newTestCoordinator(30 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testConv, 1))

	require.Eventually(t, func() bool {
		return !c.Active(1, 1) && len(publisher.ByType(models.EventTypingStop)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRefreshPostponesExpiry(t *testing.T) {
	c, publisher, _ := newTestCoordinator(60 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, testConv, 1))
	time.Sleep(35 * time.Millisecond)
	require.NoError(t, c.Start(ctx, testConv, 1))
	time.Sleep(35 * time.Millisecond)

	// First timer would have fired by now; the refresh must have disarmed it.
	require.True(t, c.Active(1, 1))
	require.Empty(t, publisher.ByType(models.EventTypingStop))
}

func TestStopAllForClearsEveryIndicator(t *testing.T) {
	c, publisher, _ := newTestCoordinator(time.Minute)
	ctx := context.Background()

	other := models.Conversation{ID: 2, User1ID: 1, User2ID: 3}
	require.NoError(t, c.Start(ctx, testConv, 1))
	require.NoError(t, c.Start(ctx, other, 1))

	peers := map[int]int{1: 2, 2: 3}
	c.StopAllFor(ctx, 1, func(conversationID int) (int, bool) {
		peer, ok := peers[conversationID]
		return peer, ok
	})

	require.False(t, c.Active(1, 1))
	require.False(t, c.Active(2, 1))
	require.Len(t, publisher.ByType(models.EventTypingStop), 2)
}
