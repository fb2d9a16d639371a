package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voicechat-service/internal/errs"
	"voicechat-service/internal/messaging"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/telemetry"
)

// ChatHandler manages conversation and message endpoints.
type ChatHandler struct {
	convRepo repositories.ConversationRepository
	msgRepo  repositories.MessageRepository
	pipeline *messaging.Pipeline
	audit    *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(convRepo repositories.ConversationRepository, msgRepo repositories.MessageRepository, pipeline *messaging.Pipeline, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		pipeline: pipeline,
		audit:    audit,
	}
}

// ListConversations returns the conversations visible to the caller.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	conversations, err := h.convRepo.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// StartConversation creates or returns the conversation with a peer.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req struct {
		PeerID int `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.convRepo.CreateOrGet(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		if errs.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns the conversation's messages in creation order. This
// is also the resync path for events that aged out of the delivery queue.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.convRepo.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.msgRepo.ListForConversation(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage submits a message through the delivery pipeline.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.pipeline.Submit(c.Request.Context(), conversationID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "message_sent", "message_id="+strconv.Itoa(msg.ID))
	c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every peer-authored message in the conversation as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.pipeline.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// EditMessage replaces a message's content (sender only).
func (h *ChatHandler) EditMessage(c *gin.Context) {
	_, messageID, ok := parseIDs(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.pipeline.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "message_edited", "message_id="+strconv.Itoa(messageID))
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message (sender only).
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	_, messageID, ok := parseIDs(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.pipeline.Delete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "message_deleted", "message_id="+strconv.Itoa(messageID))
	c.Status(http.StatusNoContent)
}

func parseIDs(c *gin.Context) (int, int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, 0, false
	}
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, false
	}
	return conversationID, messageID, true
}
