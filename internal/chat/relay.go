package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/minhvt/roomcast/pkg/protocol"
)

// DefaultSessionBuffer is the outbound line buffer per session.
const DefaultSessionBuffer = 64

// Relay runs the per-connection command loop against the shared registry and
// hub. One Relay serves every connection regardless of transport.
type Relay struct {
	registry *Registry
	hub      *Hub
	logger   zerolog.Logger
	buffer   int
}

// NewRelay wires a relay over the given registry and hub. A non-positive
// buffer falls back to DefaultSessionBuffer.
func NewRelay(registry *Registry, hub *Hub, buffer int, logger zerolog.Logger) *Relay {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Relay{registry: registry, hub: hub, logger: logger, buffer: buffer}
}

// Registry exposes the room table, mainly for tests and status reporting.
func (r *Relay) Registry() *Registry { return r.registry }

// Hub exposes the session router.
func (r *Relay) Hub() *Hub { return r.hub }

// HandleConn owns conn until the peer disconnects: it registers a session,
// starts the write pump, and runs the command loop. Cleanup removes the
// session from its room, announces the departure, and discards the session;
// a connection failure never reaches other sessions.
func (r *Relay) HandleConn(ctx context.Context, conn Conn) {
	session := newSession(conn, r.buffer, r.logger)
	r.hub.Register(session)
	session.logger.Info().Msg("session connected")

	writeDone := make(chan struct{})
	go r.writePump(session, writeDone)

	r.readLoop(ctx, session)

	r.hub.Unregister(session)
	r.leaveRoom(session)
	session.closeOutgoing()
	_ = conn.Close()
	<-writeDone
	session.logger.Info().Msg("session disconnected")
}

func (r *Relay) writePump(s *Session, done chan<- struct{}) {
	defer close(done)
	for line := range s.outgoing {
		if err := s.conn.WriteLine(line); err != nil {
			s.logger.Debug().Err(err).Msg("write failed, closing connection")
			_ = s.conn.Close()
			return
		}
	}
}

func (r *Relay) readLoop(ctx context.Context, s *Session) {
	for {
		line, err := s.conn.ReadLine(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug().Err(err).Msg("connection lost")
			}
			return
		}
		r.dispatch(s, line)
	}
}

func (r *Relay) dispatch(s *Session, line string) {
	cmd, err := protocol.ParseCommand(line)
	switch {
	case errors.Is(err, protocol.ErrMalformedCommand):
		s.logger.Debug().Str("line", line).Msg("malformed command")
		s.Send(string(protocol.EventMalformedCommand))
		return
	case err != nil:
		s.logger.Debug().Str("line", line).Msg("unknown command")
		s.Send(string(protocol.EventUnknownCommand))
		return
	}

	switch cmd.Verb {
	case protocol.VerbGetRooms:
		r.handleGetRooms(s)
	case protocol.VerbCreateRoom:
		r.handleCreateRoom(s, cmd.RoomName, cmd.Username)
	case protocol.VerbJoinRoom:
		r.handleJoinRoom(s, cmd.RoomName, cmd.Username)
	case protocol.VerbLeaveRoom:
		r.leaveRoom(s)
	case protocol.VerbSendMessage:
		r.handleSendMessage(s, cmd.Target, cmd.Text)
	}
}

func (r *Relay) handleGetRooms(s *Session) {
	for _, room := range r.registry.List() {
		s.Send(protocol.RoomLine(room.Descriptor()))
	}
	s.Send(string(protocol.EventEndOfRoomList))
}

// handleCreateRoom creates the room and implicitly joins the creator. The
// creator gets the dedicated RoomCreated confirmation; every other session
// gets the NewRoom announcement instead.
func (r *Relay) handleCreateRoom(s *Session, name, creator string) {
	s.setUsername(creator)
	room := r.registry.Create(name, creator)
	s.logger.Info().Int("room", room.Descriptor().ID).Str("name", name).Str("creator", creator).
		Msg("room created")

	r.leaveRoom(s)
	s.setRoom(room)
	room.AddMember(s.Username())

	s.Send(protocol.RoomCreatedLine(room.Descriptor()))
	r.hub.ToOthers(protocol.NewRoomLine(room.Descriptor()), s)
	r.hub.RefreshUserList(room)
}

func (r *Relay) handleJoinRoom(s *Session, name, username string) {
	room, err := r.registry.FindByName(name)
	if err != nil {
		s.logger.Debug().Str("name", name).Msg("join against unknown room")
		s.Send(string(protocol.EventRoomNotFound))
		return
	}
	s.setUsername(username)
	user := s.Username()

	// Re-establishing the invariant: one room per session. Joining while
	// already in a room leaves the old one first.
	if current := s.Room(); current != nil && current != room {
		r.leaveRoom(s)
	}

	s.setRoom(room)
	room.AddMember(user)
	s.logger.Info().Int("room", room.Descriptor().ID).Str("user", user).Msg("user joined room")

	s.Send(protocol.JoinedRoomLine(room.Descriptor()))
	r.hub.ToRoom(room, protocol.SystemLine(fmt.Sprintf("User '%s' joined the room", user)), nil)
	r.hub.RefreshUserList(room)
}

// leaveRoom removes the session from its current room, announces the
// departure to the remaining occupants, and refreshes their member lists.
// A session with no room is left untouched.
func (r *Relay) leaveRoom(s *Session) {
	room := s.Room()
	if room == nil {
		return
	}
	user := s.Username()
	s.setRoom(nil)
	room.RemoveMember(user)
	s.logger.Info().Int("room", room.Descriptor().ID).Str("user", user).Msg("user left room")

	r.hub.ToRoom(room, protocol.SystemLine(fmt.Sprintf("User '%s' left the room", user)), nil)
	r.hub.RefreshUserList(room)
}

func (r *Relay) handleSendMessage(s *Session, target, text string) {
	if target == protocol.TargetAll {
		room := s.Room()
		if room == nil {
			// Broadcasting outside a room is ignored, not rejected.
			s.logger.Debug().Msg("broadcast with no current room")
			return
		}
		r.hub.ToRoom(room, protocol.MessageLine(s.RemoteHost(), s.Username(), text), nil)
		return
	}

	if target == s.Username() {
		s.Send(string(protocol.EventSelfMessageRejected))
		return
	}
	err := r.hub.ToUser(target, protocol.PrivateFromLine(s.RemoteHost(), s.Username(), text))
	if err != nil {
		s.logger.Debug().Str("recipient", target).Msg("private message to unknown user")
		s.Send(protocol.UserNotFoundLine(target))
		return
	}
	s.Send(protocol.PrivateToLine(s.RemoteHost(), target, text))
}
