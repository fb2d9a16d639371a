package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voicechat-service/internal/mocks"
	"voicechat-service/internal/models"
	"voicechat-service/internal/presence"
)

func setupPresenceRouter(handler *PresenceHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/presence/status", handler.SetStatus)
	r.GET("/presence/:user_id", handler.GetStatus)
	return r
}

func TestSetStatusAccepted(t *testing.T) {
	handler := NewPresenceHandler(presence.NewRegistry(), new(mocks.PresenceStoreMock), nil)
	router := setupPresenceRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/presence/status", bytes.NewBufferString(`{"status":"away"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	handler := NewPresenceHandler(presence.NewRegistry(), new(mocks.PresenceStoreMock), nil)
	router := setupPresenceRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/presence/status", bytes.NewBufferString(`{"status":"invisible"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetStatusRejectsOffline(t *testing.T) {
	handler := NewPresenceHandler(presence.NewRegistry(), new(mocks.PresenceStoreMock), nil)
	router := setupPresenceRouter(handler)

	// Offline is derived from connection state, never declared.
	req := httptest.NewRequest(http.MethodPost, "/presence/status", bytes.NewBufferString(`{"status":"offline"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStatusFallsBackToStore(t *testing.T) {
	store := new(mocks.PresenceStoreMock)
	handler := NewPresenceHandler(presence.NewRegistry(), store, nil)
	router := setupPresenceRouter(handler)

	stored := models.Presence{UserID: 2, Status: models.PresenceOffline, LastSeen: time.Now().Add(-time.Hour)}
	store.On("Get", mock.Anything, 2).Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"offline"`)
	store.AssertExpectations(t)
}
