// Package ws holds the live WebSocket sessions: a capacity-bounded registry,
// the per-connection session wrapper, and the inbound message router.
package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skillsenselab/scribe/internal/protocol"
)

const writeWait = 10 * time.Second

// Session wraps one WebSocket connection. All writes go through the session
// so concurrent senders never interleave frames.
type Session struct {
	id   string
	conn *websocket.Conn

	mu sync.Mutex
}

// NewSession wraps conn and assigns a fresh session id.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Send writes one JSON message to the peer.
func (s *Session) Send(msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// Close sends a close frame with the given code and closes the connection.
func (s *Session) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	return s.conn.Close()
}

// ReadJSON reads the next inbound message from the peer.
func (s *Session) ReadJSON(v any) error {
	return s.conn.ReadJSON(v)
}
