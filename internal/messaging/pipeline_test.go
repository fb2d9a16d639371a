package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/mocks"
	"voicechat-service/internal/models"
	"voicechat-service/internal/typing"
)

type onlineStub struct {
	online map[int]bool
}

func (o onlineStub) IsOnline(userID int) bool { return o.online[userID] }

var testConv = models.Conversation{ID: 5, User1ID: 1, User2ID: 2}

func TestSubmitDeliversToOnlineRecipient(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{online: map[int]bool{2: true}}, nil)
	ctx := context.Background()

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	created := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hi", Status: models.MessageStatusSent}
	msgRepo.On("Create", mock.Anything, 5, 1, "hi").Return(created, nil).Once()
	msgRepo.On("MarkDelivered", mock.Anything, []int{9}).Return(nil).Once()

	msg, err := p.Submit(ctx, 5, 1, "hi")
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusDelivered, msg.Status)

	events := publisher.ByType(models.EventMessageNew)
	require.Len(t, events, 1)
	require.ElementsMatch(t, []int{1, 2}, events[0].Targets)
	// No observer may see a stale sent status for a delivered message.
	require.Equal(t, models.MessageStatusDelivered, events[0].Payload.(models.Message).Status)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSubmitOfflineRecipientStaysSent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{online: map[int]bool{}}, nil)

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	created := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hi", Status: models.MessageStatusSent}
	msgRepo.On("Create", mock.Anything, 5, 1, "hi").Return(created, nil).Once()

	msg, err := p.Submit(context.Background(), 5, 1, "hi")
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusSent, msg.Status)

	msgRepo.AssertNotCalled(t, "MarkDelivered", mock.Anything, mock.Anything)
}

func TestSubmitClearsSenderTypingIndicator(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	typingRepo := new(mocks.TypingRepositoryMock)
	typingRepo.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	typingRepo.On("Delete", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	coordinator := typing.NewCoordinator(publisher, typingRepo, time.Minute)
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, coordinator)
	ctx := context.Background()

	require.NoError(t, coordinator.Start(ctx, testConv, 1))
	require.True(t, coordinator.Active(5, 1))

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	created := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hi", Status: models.MessageStatusSent}
	msgRepo.On("Create", mock.Anything, 5, 1, "hi").Return(created, nil).Once()

	_, err := p.Submit(ctx, 5, 1, "hi")
	require.NoError(t, err)

	// Sending implies the sender stopped typing; the peer is told once.
	require.False(t, coordinator.Active(5, 1))
	stops := publisher.ByType(models.EventTypingStop)
	require.Len(t, stops, 1)
	require.Equal(t, []int{2}, stops[0].Targets)
}

func TestSubmitPromotionFailureDegradesToSent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{online: map[int]bool{2: true}}, nil)

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	created := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hi", Status: models.MessageStatusSent}
	msgRepo.On("Create", mock.Anything, 5, 1, "hi").Return(created, nil).Once()
	msgRepo.On("MarkDelivered", mock.Anything, []int{9}).Return(assert.AnError).Once()

	// The durable message must not be lost behind a failed promotion: it
	// goes out as sent and the connect hook upgrades it later.
	msg, err := p.Submit(context.Background(), 5, 1, "hi")
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusSent, msg.Status)

	events := publisher.ByType(models.EventMessageNew)
	require.Len(t, events, 1)
	require.Equal(t, models.MessageStatusSent, events[0].Payload.(models.Message).Status)
}

func TestSubmitRejectsEmptyContent(t *testing.T) {
	p := NewPipeline(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock), &mocks.RecordingPublisher{}, onlineStub{}, nil)

	_, err := p.Submit(context.Background(), 5, 1, "   ")
	require.True(t, errs.IsValidation(err))
}

func TestSubmitRejectsNonParticipant(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	p := NewPipeline(convRepo, new(mocks.MessageRepositoryMock), &mocks.RecordingPublisher{}, onlineStub{}, nil)

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()

	_, err := p.Submit(context.Background(), 5, 99, "hi")
	require.True(t, errs.IsAuthorization(err))
}

func TestSubmitStorageFailureIsTransient(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, nil)

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	msgRepo.On("Create", mock.Anything, 5, 1, "hi").Return(models.Message{}, assert.AnError).Once()

	_, err := p.Submit(context.Background(), 5, 1, "hi")
	require.True(t, errs.IsTransient(err))
	// Nothing was persisted, so nothing may be broadcast.
	require.Empty(t, publisher.Events)
}

func TestPromotePendingNotifiesSenders(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(new(mocks.ConversationRepositoryMock), msgRepo, publisher, onlineStub{}, nil)
	ctx := context.Background()

	pending := []models.Message{
		{ID: 1, ConversationID: 5, SenderID: 1, Status: models.MessageStatusSent},
		{ID: 2, ConversationID: 5, SenderID: 1, Status: models.MessageStatusSent},
	}
	msgRepo.On("PendingForRecipient", mock.Anything, 2).Return(pending, nil).Once()
	msgRepo.On("MarkDelivered", mock.Anything, []int{1, 2}).Return(nil).Once()

	require.NoError(t, p.PromotePending(ctx, 2))

	updates := publisher.ByType(models.EventMessageStatus)
	require.Len(t, updates, 1)
	require.Equal(t, []int{1}, updates[0].Targets)
	update := updates[0].Payload.(models.StatusUpdate)
	require.Equal(t, models.MessageStatusDelivered, update.Status)
	require.Equal(t, []int{1, 2}, update.MessageIDs)
}

func TestPromotePendingNoopWithoutBacklog(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(new(mocks.ConversationRepositoryMock), msgRepo, publisher, onlineStub{}, nil)

	msgRepo.On("PendingForRecipient", mock.Anything, 2).Return(([]models.Message)(nil), nil).Once()

	require.NoError(t, p.PromotePending(context.Background(), 2))
	require.Empty(t, publisher.Events)
}

func TestMarkReadBroadcastsToAuthor(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, nil)
	ctx := context.Background()

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	msgRepo.On("MarkReadBatch", mock.Anything, 5, 2).Return([]int{1, 3}, nil).Once()

	require.NoError(t, p.MarkRead(ctx, 5, 2))

	updates := publisher.ByType(models.EventMessageStatus)
	require.Len(t, updates, 1)
	require.Equal(t, []int{1}, updates[0].Targets)
	require.Equal(t, models.MessageStatusRead, updates[0].Payload.(models.StatusUpdate).Status)
}

func TestMarkReadIdempotentWhenNothingEligible(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, nil)

	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()
	msgRepo.On("MarkReadBatch", mock.Anything, 5, 2).Return(([]int)(nil), nil).Once()

	require.NoError(t, p.MarkRead(context.Background(), 5, 2))
	require.Empty(t, publisher.Events)
}

func TestEditOnlyBySender(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(new(mocks.ConversationRepositoryMock), msgRepo, &mocks.RecordingPublisher{}, onlineStub{}, nil)

	msgRepo.On("Get", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1}, nil).Once()

	_, err := p.Edit(context.Background(), 9, 2, "rewritten")
	require.True(t, errs.IsAuthorization(err))
}

func TestEditBroadcastsToPeer(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, nil)
	ctx := context.Background()

	msgRepo.On("Get", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1}, nil).Once()
	edited := models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "rewritten", Edited: true}
	msgRepo.On("UpdateContent", mock.Anything, 9, "rewritten").Return(edited, nil).Once()
	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()

	msg, err := p.Edit(ctx, 9, 1, "rewritten")
	require.NoError(t, err)
	require.True(t, msg.Edited)

	events := publisher.ByType(models.EventMessageUpdated)
	require.Len(t, events, 1)
	require.Equal(t, []int{2}, events[0].Targets)
}

func TestDeleteBroadcastsRemoval(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	publisher := &mocks.RecordingPublisher{}
	p := NewPipeline(convRepo, msgRepo, publisher, onlineStub{}, nil)
	ctx := context.Background()

	msgRepo.On("Get", mock.Anything, 9).Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1}, nil).Once()
	msgRepo.On("Delete", mock.Anything, 9).Return(nil).Once()
	convRepo.On("Get", mock.Anything, 5).Return(testConv, nil).Once()

	require.NoError(t, p.Delete(ctx, 9, 1))

	events := publisher.ByType(models.EventMessageDeleted)
	require.Len(t, events, 1)
	removed := events[0].Payload.(models.MessageDeleted)
	require.Equal(t, 9, removed.MessageID)
}

func TestDeleteUnknownMessage(t *testing.T) {
	msgRepo := new(mocks.MessageRepositoryMock)
	p := NewPipeline(new(mocks.ConversationRepositoryMock), msgRepo, &mocks.RecordingPublisher{}, onlineStub{}, nil)

	msgRepo.On("Get", mock.Anything, 9).Return(models.Message{}, errs.ErrMessageNotFound).Once()

	err := p.Delete(context.Background(), 9, 1)
	require.ErrorIs(t, err, errs.ErrMessageNotFound)
}
