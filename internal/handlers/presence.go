package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voicechat-service/internal/models"
	"voicechat-service/internal/presence"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/telemetry"
)

// PresenceHandler exposes declared status changes and presence lookups.
type PresenceHandler struct {
	registry *presence.Registry
	store    repositories.PresenceStore
	audit    *telemetry.AuditEmitter
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(registry *presence.Registry, store repositories.PresenceStore, audit *telemetry.AuditEmitter) *PresenceHandler {
	return &PresenceHandler{registry: registry, store: store, audit: audit}
}

// SetStatus records the caller's declared status (online/away).
func (h *PresenceHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidPresenceStatus(req.Status) || req.Status == models.PresenceOffline {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be online or away"})
		return
	}

	userID := c.GetInt("userID")
	h.registry.SetStatus(userID, req.Status)

	emitAudit(c, h.audit, "presence_status", "status="+req.Status)
	c.Status(http.StatusNoContent)
}

// GetStatus returns a user's last-known presence. Live registry state wins;
// the store answers for users this instance has never seen.
func (h *PresenceHandler) GetStatus(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if h.registry.IsOnline(userID) {
		status, lastSeen := h.registry.Status(userID)
		c.JSON(http.StatusOK, models.Presence{UserID: userID, Status: status, LastSeen: lastSeen})
		return
	}

	stored, err := h.store.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, stored)
}
