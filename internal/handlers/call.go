package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voicechat-service/internal/call"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/telemetry"
)

// CallHandler exposes the call session lifecycle over HTTP. State changes
// flow through the machine; the handler only translates transport.
type CallHandler struct {
	machine  *call.Machine
	convRepo repositories.ConversationRepository
	audit    *telemetry.AuditEmitter
}

// NewCallHandler builds a CallHandler.
func NewCallHandler(machine *call.Machine, convRepo repositories.ConversationRepository, audit *telemetry.AuditEmitter) *CallHandler {
	return &CallHandler{machine: machine, convRepo: convRepo, audit: audit}
}

// Initiate starts a call to a conversation peer.
func (h *CallHandler) Initiate(c *gin.Context) {
	var req struct {
		ConversationID int `json:"conversation_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	conv, err := h.convRepo.Get(c.Request.Context(), req.ConversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	session, err := h.machine.Initiate(c.Request.Context(), userID, conv.PeerOf(userID), conv.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "call_initiated", "call_id="+session.ID)
	c.JSON(http.StatusCreated, session)
}

// Answer connects a ringing call.
func (h *CallHandler) Answer(c *gin.Context) {
	userID := c.GetInt("userID")
	session, err := h.machine.Answer(c.Request.Context(), c.Param("call_id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "call_answered", "call_id="+session.ID)
	c.JSON(http.StatusOK, session)
}

// Decline rejects a ringing call.
func (h *CallHandler) Decline(c *gin.Context) {
	userID := c.GetInt("userID")
	session, err := h.machine.Decline(c.Request.Context(), c.Param("call_id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "call_declined", "call_id="+session.ID)
	c.JSON(http.StatusOK, session)
}

// End hangs up or cancels a call.
func (h *CallHandler) End(c *gin.Context) {
	userID := c.GetInt("userID")
	session, err := h.machine.End(c.Request.Context(), c.Param("call_id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "call_ended", "call_id="+session.ID)
	c.JSON(http.StatusOK, session)
}

// Signal relays an opaque negotiation payload to the other party.
func (h *CallHandler) Signal(c *gin.Context) {
	var req struct {
		Payload any `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if err := h.machine.RelaySignal(c.Request.Context(), c.Param("call_id"), userID, req.Payload); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// Get returns the call session's current state.
func (h *CallHandler) Get(c *gin.Context) {
	session, err := h.machine.Get(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !session.HasParty(c.GetInt("userID")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a call participant"})
		return
	}

	c.JSON(http.StatusOK, session)
}
