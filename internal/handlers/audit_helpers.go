package handlers

import (
	"github.com/gin-gonic/gin"

	"voicechat-service/internal/observability"
	"voicechat-service/internal/telemetry"
)

// emitAudit records one audit event for the authenticated request.
func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, action, detail string) {
	if emitter == nil {
		return
	}
	userID := int64(c.GetInt("userID"))
	emitter.Emit(c.Request.Context(), action, detail,
		observability.RequestIDFromRequest(c.Request), &userID)
}
