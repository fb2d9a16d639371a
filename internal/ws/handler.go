package ws

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"voicechat-service/internal/messaging"
	"voicechat-service/internal/observability"
	"voicechat-service/internal/presence"
	"voicechat-service/internal/repositories"
	"voicechat-service/internal/router"
	"voicechat-service/internal/telemetry"
	"voicechat-service/internal/typing"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator func(ctx context.Context, token string) (int, error)

// Handler upgrades the per-user event socket and runs the connect and
// disconnect hooks: presence registration, pending-message promotion,
// buffered-event replay, and typing cleanup.
type Handler struct {
	registry      *presence.Registry
	fanout        *router.Router
	pipeline      *messaging.Pipeline
	typing        *typing.Coordinator
	convRepo      repositories.ConversationRepository
	validateToken TokenValidator
	audit         *telemetry.AuditEmitter
}

// NewHandler constructs a Handler.
func NewHandler(registry *presence.Registry, fanout *router.Router, pipeline *messaging.Pipeline, coordinator *typing.Coordinator, convRepo repositories.ConversationRepository, validate TokenValidator, audit *telemetry.AuditEmitter) *Handler {
	return &Handler{
		registry:      registry,
		fanout:        fanout,
		pipeline:      pipeline,
		typing:        coordinator,
		convRepo:      convRepo,
		validateToken: validate,
		audit:         audit,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the session.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("voicechat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.validateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	resumeSeq, _ := strconv.ParseUint(c.Query("last_seq"), 10, 64)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	session := NewSession(conn, info, resumeSeq)

	// Registration and backlog replay happen under the user's stream lock
	// so no concurrent publish can reach the session out of order.
	if err := h.fanout.Resume(ctx, userID, session, func() {
		h.registry.Connect(userID, session)
	}); err != nil {
		log.Printf("ws: replay for user %d failed: %v", userID, err)
	}
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	auditUser := int64(userID)
	h.audit.Emit(ctx, "ws_connect", "conn_id="+info.ConnID, info.RequestID, &auditUser)

	// Second connect hook: promote the user's pending messages to delivered.
	if err := h.pipeline.PromotePending(ctx, userID); err != nil {
		log.Printf("ws: promote pending for user %d failed: %v", userID, err)
	}

	go h.readLoop(session)
	go h.pingLoop(session)
}

func (h *Handler) readLoop(session *Session) {
	info := session.Info()
	defer func() {
		h.registry.Disconnect(info.UserID, session.ID())
		h.cleanupTyping(info.UserID)
		session.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		auditUser := int64(info.UserID)
		h.audit.Emit(ctx, "ws_disconnect",
			"conn_id="+info.ConnID+" duration_ms="+strconv.FormatInt(time.Since(info.ConnectedAt).Milliseconds(), 10),
			info.RequestID, &auditUser)
	}()

	session.conn.SetReadDeadline(time.Now().Add(pongWait))
	session.conn.SetPongHandler(func(string) error {
		session.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Inbound frames carry no commands; the socket is receive-only.
		// Reading keeps the connection alive and detects the close.
		if _, _, err := session.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
	}
}

func (h *Handler) pingLoop(session *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := session.Ping(); err != nil {
			session.Close()
			return
		}
	}
}

// cleanupTyping clears any indicators the user still held so partners do
// not keep seeing a phantom typing state after an unclean disconnect.
func (h *Handler) cleanupTyping(userID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.typing.StopAllFor(ctx, userID, func(conversationID int) (int, bool) {
		conv, err := h.convRepo.Get(ctx, conversationID)
		if err != nil {
			return 0, false
		}
		return conv.PeerOf(userID), true
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
