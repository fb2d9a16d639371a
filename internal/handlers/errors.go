package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicechat-service/internal/errs"
)

// respondError maps the domain error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.IsAuthorization(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errs.IsConflict(err):
		var conflict *errs.ConflictError
		errors.As(err, &conflict)
		c.JSON(http.StatusConflict, gin.H{
			"error":          "call already in progress",
			"active_call_id": conflict.ActiveCallID,
		})
	case errs.IsInvalidTransition(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrConversationNotFound),
		errors.Is(err, errs.ErrMessageNotFound),
		errors.Is(err, errs.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary failure, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
