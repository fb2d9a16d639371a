package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicechat-service/internal/models"
	"voicechat-service/internal/router"
)

const writeWait = 10 * time.Second

// Session wraps one websocket connection as a router delivery handle.
// Writes are serialized by a mutex; the read loop lives in the handler.
type Session struct {
	info      ConnInfo
	conn      *websocket.Conn
	resumeSeq uint64

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewSession builds a Session. resumeSeq is the highest sequence number the
// client reports having seen before reconnecting.
func NewSession(conn *websocket.Conn, info ConnInfo, resumeSeq uint64) *Session {
	return &Session{info: info, conn: conn, resumeSeq: resumeSeq}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.info.ConnID }

// Info returns the connection metadata captured at handshake.
func (s *Session) Info() ConnInfo { return s.info }

// ResumeSeq returns the client's confirmed sequence number.
func (s *Session) ResumeSeq() uint64 { return s.resumeSeq }

// Deliver writes one envelope to the peer with a bounded deadline.
func (s *Session) Deliver(env models.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// Ping sends a control ping; the read loop's pong handler extends the read
// deadline.
func (s *Session) Ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close tears the connection down once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}

var _ router.Session = (*Session)(nil)
