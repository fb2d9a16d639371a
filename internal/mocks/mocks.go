package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"voicechat-service/internal/models"
	"voicechat-service/internal/queue"
	"voicechat-service/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGet(ctx context.Context, userID int, peerID int) (models.Conversation, error) {
	args := m.Called(ctx, userID, peerID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) List(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) PartnerIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID int, senderID int, content string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageIDs []int) error {
	args := m.Called(ctx, messageIDs)
	return args.Error(0)
}

func (m *MessageRepositoryMock) PendingForRecipient(ctx context.Context, userID int) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkReadBatch(ctx context.Context, conversationID int, readerID int) ([]int, error) {
	args := m.Called(ctx, conversationID, readerID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type CallRepositoryMock struct {
	mock.Mock
}

func (m *CallRepositoryMock) Create(ctx context.Context, session models.CallSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *CallRepositoryMock) Get(ctx context.Context, callID string) (models.CallSession, error) {
	args := m.Called(ctx, callID)
	var session models.CallSession
	if val := args.Get(0); val != nil {
		session = val.(models.CallSession)
	}
	return session, args.Error(1)
}

func (m *CallRepositoryMock) UpdateStatus(ctx context.Context, session models.CallSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

type TypingRepositoryMock struct {
	mock.Mock
}

func (m *TypingRepositoryMock) Upsert(ctx context.Context, conversationID int, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *TypingRepositoryMock) Delete(ctx context.Context, conversationID int, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

type PresenceStoreMock struct {
	mock.Mock
}

func (m *PresenceStoreMock) Set(ctx context.Context, presence models.Presence) error {
	args := m.Called(ctx, presence)
	return args.Error(0)
}

func (m *PresenceStoreMock) Get(ctx context.Context, userID int) (models.Presence, error) {
	args := m.Called(ctx, userID)
	var presence models.Presence
	if val := args.Get(0); val != nil {
		presence = val.(models.Presence)
	}
	return presence, args.Error(1)
}

type QueueManagerMock struct {
	mock.Mock
}

func (m *QueueManagerMock) Enqueue(ctx context.Context, userID int, env models.Envelope) error {
	args := m.Called(ctx, userID, env)
	return args.Error(0)
}

func (m *QueueManagerMock) Drain(ctx context.Context, userID int) ([]models.Envelope, error) {
	args := m.Called(ctx, userID)
	var envs []models.Envelope
	if val := args.Get(0); val != nil {
		envs = val.([]models.Envelope)
	}
	return envs, args.Error(1)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.CallRepository = (*CallRepositoryMock)(nil)
var _ repositories.TypingRepository = (*TypingRepositoryMock)(nil)
var _ repositories.PresenceStore = (*PresenceStoreMock)(nil)
var _ queue.Manager = (*QueueManagerMock)(nil)
