package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voicechat-service/internal/models"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/typing"
)

// TypingHandler exposes typing indicator start/stop.
type TypingHandler struct {
	coordinator *typing.Coordinator
	convRepo    repositories.ConversationRepository
}

// NewTypingHandler builds a TypingHandler.
func NewTypingHandler(coordinator *typing.Coordinator, convRepo repositories.ConversationRepository) *TypingHandler {
	return &TypingHandler{coordinator: coordinator, convRepo: convRepo}
}

// Start begins or refreshes the caller's typing indicator.
func (h *TypingHandler) Start(c *gin.Context) {
	conv, userID, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := h.coordinator.Start(c.Request.Context(), conv, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stop clears the caller's typing indicator.
func (h *TypingHandler) Stop(c *gin.Context) {
	conv, userID, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := h.coordinator.Stop(c.Request.Context(), conv, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TypingHandler) resolve(c *gin.Context) (conv models.Conversation, userID int, ok bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return conv, 0, false
	}

	userID = c.GetInt("userID")
	loaded, err := h.convRepo.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return conv, 0, false
	}
	if !loaded.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return conv, 0, false
	}
	return loaded, userID, true
}
