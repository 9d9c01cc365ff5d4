package chat

import (
	"net"
	"sync"

	"github.com/rs/zerolog"
	uuid "github.com/satori/go.uuid"
)

// Session is the relay-side state of one connected client: the username
// recorded on its first join or create, the room it currently occupies (at
// most one), and a bounded outbound line buffer drained by the write pump.
type Session struct {
	id         string
	conn       Conn
	remoteHost string
	outgoing   chan string
	logger     zerolog.Logger

	mu       sync.RWMutex
	username string
	room     *Room
	closed   bool
}

func newSession(conn Conn, buffer int, logger zerolog.Logger) *Session {
	id := uuid.NewV4().String()
	return &Session{
		id:         id,
		conn:       conn,
		remoteHost: hostOf(conn.RemoteAddr()),
		outgoing:   make(chan string, buffer),
		logger:     logger.With().Str("session", id).Str("remote", conn.RemoteAddr()).Logger(),
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ID returns the session identifier used for log correlation.
func (s *Session) ID() string { return s.id }

// RemoteHost returns the peer address carried as the origin field of message
// events.
func (s *Session) RemoteHost() string { return s.remoteHost }

// Username returns the recorded username, empty until the first join or
// create. Usernames are not unique across sessions.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// setUsername records the username on the first join or create; later
// commands keep the original name.
func (s *Session) setUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" {
		s.username = name
	}
}

// Room returns the current room, nil while idle.
func (s *Session) Room() *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

func (s *Session) setRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
}

// InRoom reports whether the session currently occupies r.
func (s *Session) InRoom(r *Room) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room == r
}

// Send queues one line for delivery. Delivery never blocks a broadcasting
// session: when the buffer is full the line is dropped and logged.
func (s *Session) Send(line string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.outgoing <- line:
	default:
		s.logger.Warn().Str("line", line).Msg("outbound buffer full, dropping line")
	}
}

// closeOutgoing stops delivery and releases the write pump. Safe against
// concurrent Send calls.
func (s *Session) closeOutgoing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outgoing)
}
