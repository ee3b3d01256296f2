package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// conn is the slice of *websocket.Conn the session needs. Tests substitute a
// recording fake; production always passes the real connection.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// session is one live websocket connection. The mutex serializes writes: the
// broadcast tick and targeted replies race for the same socket.
type session struct {
	conn     conn
	deadline interface{ SetWriteDeadline(time.Time) error }
	mu       sync.Mutex
	playerID string
}

func newSession(c *websocket.Conn) *session {
	return &session{conn: c, deadline: c}
}

// send writes one pre-serialized frame. A false return means the socket is
// dead and the caller must drop this session; the error never propagates
// further than that.
func (s *session) send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		_ = s.deadline.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data) == nil
}

func (s *session) close() {
	_ = s.conn.Close()
}
