package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/minhvt/roomcast/pkg/protocol"
)

// ErrUserNotFound reports a direct message whose recipient has no session.
var ErrUserNotFound = errors.New("user not found")

// Hub is the broadcast router: it tracks every live session and delivers
// formatted lines to the sessions matching a room or a username. Broadcasts
// iterate over a snapshot of the session set, so concurrent join, leave, and
// disconnect never race with delivery.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[*Session]struct{})}
}

// Register adds a session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// ToRoom delivers line to every session currently in room, except the given
// session if any. Chat messages pass except=nil so the sender hears its own
// broadcast.
func (h *Hub) ToRoom(room *Room, line string, except *Session) {
	for _, s := range h.snapshot() {
		if s != except && s.InRoom(room) {
			s.Send(line)
		}
	}
}

// ToUser delivers line to the first session whose username matches.
func (h *Hub) ToUser(username, line string) error {
	for _, s := range h.snapshot() {
		if s.Username() == username {
			s.Send(line)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUserNotFound, username)
}

// ToOthers delivers line to every session except the given one, regardless of
// room. Used for new-room announcements.
func (h *Hub) ToOthers(line string, except *Session) {
	for _, s := range h.snapshot() {
		if s != except {
			s.Send(line)
		}
	}
}

// RefreshUserList resends the full member list of room to every occupant:
// a clear marker, the All entry, one User line per member, an end marker.
// Membership changes always trigger a full resend, never a delta.
func (h *Hub) RefreshUserList(room *Room) {
	lines := []string{
		string(protocol.EventClearUserList),
		protocol.UserLine(protocol.TargetAll),
	}
	for _, m := range room.Members() {
		lines = append(lines, protocol.UserLine(m))
	}
	lines = append(lines, string(protocol.EventEndOfUserList))

	for _, s := range h.snapshot() {
		if s.InRoom(room) {
			for _, line := range lines {
				s.Send(line)
			}
		}
	}
}
