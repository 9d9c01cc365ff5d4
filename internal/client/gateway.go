// Package client implements the sync gateway: one receiver goroutine reads
// the relay's event stream while user-triggered calls block until the event
// that correlates with their command arrives.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chuckpreslar/emission"
	"github.com/rs/zerolog"

	"github.com/minhvt/roomcast/pkg/protocol"
)

var (
	// ErrConnectFailed reports that the transport could not be established.
	ErrConnectFailed = errors.New("unable to connect to relay")
	// ErrNotConnected reports a command issued before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrConnectionLost reports a dead connection under a pending call.
	ErrConnectionLost = errors.New("connection lost")
	// ErrWaitTimeout reports a correlation wait that exceeded the bound.
	ErrWaitTimeout = errors.New("timed out waiting for relay response")
	// ErrCancelled reports a correlation wait abandoned via context.
	ErrCancelled = errors.New("wait cancelled")
)

// DefaultWaitTimeout bounds every blocking correlation wait. A
// non-responding relay surfaces ErrWaitTimeout instead of hanging the
// caller.
const DefaultWaitTimeout = 10 * time.Second

// Emitter event names dispatched to subscribers.
const (
	EventRoom         = "room"     // protocol.Room: one room announced or listed
	EventRoomList     = "rooms"    // []protocol.Room: listing completed
	EventJoined       = "joined"   // protocol.Room: join confirmed (ID and Name)
	EventMessage      = "message"  // string: rendered room message
	EventPrivate      = "private"  // string: rendered direct message
	EventSystem       = "system"   // string: join/leave notice text
	EventUsers        = "users"    // []string: member list refreshed
	EventError        = "error"    // protocol.Event: relay error line
	EventDisconnected = "disconnected"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithWebSocket dials the relay over WebSocket instead of plain TCP.
func WithWebSocket() Option {
	return func(g *Gateway) { g.useWebSocket = true }
}

// WithWaitTimeout bounds the blocking correlation waits. Zero or negative
// disables the bound.
func WithWaitTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.waitTimeout = d }
}

// WithLogger attaches a logger; the default is a nop logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// Gateway is one client's connection to the relay. The room cache and the
// pending-call markers are guarded by a single mutex shared between the
// receiver and the blocking callers; correlation uses condition variables,
// never polling.
type Gateway struct {
	addr         string
	username     string
	useWebSocket bool
	waitTimeout  time.Duration
	logger       zerolog.Logger
	emitter      *emission.Emitter

	mu         sync.Mutex
	listCond   *sync.Cond
	createCond *sync.Cond
	conn       Connection
	rooms      []protocol.Room
	users      []string
	listLoaded bool
	created    *protocol.Room
	closed     bool
	wg         sync.WaitGroup
}

// New builds a gateway for the given relay address and username.
func New(addr, username string, opts ...Option) *Gateway {
	g := &Gateway{
		addr:        addr,
		username:    username,
		waitTimeout: DefaultWaitTimeout,
		logger:      zerolog.Nop(),
		emitter:     emission.NewEmitter(),
	}
	g.listCond = sync.NewCond(&g.mu)
	g.createCond = sync.NewCond(&g.mu)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Username returns the local username used as the creation correlation key.
func (g *Gateway) Username() string { return g.username }

// On subscribes fn to one of the Event* names.
func (g *Gateway) On(event string, fn interface{}) {
	g.emitter.On(event, fn)
}

// Connect establishes the transport and starts the event receiver.
func (g *Gateway) Connect() error {
	var (
		conn Connection
		err  error
	)
	if g.useWebSocket {
		conn, err = DialWebSocket(g.addr)
	} else {
		conn, err = DialTCP(g.addr)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	g.mu.Lock()
	g.conn = conn
	g.closed = false
	g.mu.Unlock()

	g.wg.Add(1)
	go g.receive(conn)
	return nil
}

// Disconnect closes the transport and waits for the receiver to stop.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	g.wg.Wait()
}

// Rooms requests a fresh listing and blocks until the receiver has applied
// every room descriptor and seen the end-of-list marker. The cache is reset
// first, so the returned slice is exactly the relay's current table.
func (g *Gateway) Rooms(ctx context.Context) ([]protocol.Room, error) {
	g.mu.Lock()
	g.rooms = nil
	g.listLoaded = false
	g.mu.Unlock()

	if err := g.send(protocol.Command{Verb: protocol.VerbGetRooms}); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.wait(ctx, g.listCond, func() bool { return g.listLoaded }); err != nil {
		return nil, err
	}
	out := make([]protocol.Room, len(g.rooms))
	copy(out, g.rooms)
	return out, nil
}

// CreateRoom asks the relay for a new room and blocks until the receiver sees
// a RoomCreated event whose creator equals the local username. The relay
// joins the creator implicitly, so the returned room is already current.
//
// Creator-name matching is the correlation key: two clients creating rooms
// concurrently under the same username can cross-deliver. Known limitation.
func (g *Gateway) CreateRoom(ctx context.Context, name string) (protocol.Room, error) {
	g.mu.Lock()
	g.created = nil
	g.mu.Unlock()

	err := g.send(protocol.Command{Verb: protocol.VerbCreateRoom, RoomName: name, Username: g.username})
	if err != nil {
		return protocol.Room{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.wait(ctx, g.createCond, func() bool { return g.created != nil }); err != nil {
		return protocol.Room{}, err
	}
	room := *g.created
	g.created = nil
	return room, nil
}

// Join asks the relay to move this session into the named room. The
// confirmation arrives asynchronously as an EventJoined emission.
func (g *Gateway) Join(roomName string) error {
	return g.send(protocol.Command{Verb: protocol.VerbJoinRoom, RoomName: roomName, Username: g.username})
}

// Leave exits the current room, if any.
func (g *Gateway) Leave() error {
	return g.send(protocol.Command{Verb: protocol.VerbLeaveRoom})
}

// SendAll broadcasts text to the current room.
func (g *Gateway) SendAll(text string) error {
	return g.send(protocol.Command{Verb: protocol.VerbSendMessage, Target: protocol.TargetAll, Text: text})
}

// SendPrivate sends a direct message. Delivery failures come back as
// EventError emissions.
func (g *Gateway) SendPrivate(username, text string) error {
	return g.send(protocol.Command{Verb: protocol.VerbSendMessage, Target: username, Text: text})
}

// CachedRooms returns the current room cache snapshot.
func (g *Gateway) CachedRooms() []protocol.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.Room, len(g.rooms))
	copy(out, g.rooms)
	return out
}

// Users returns the latest member list snapshot.
func (g *Gateway) Users() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.users))
	copy(out, g.users)
	return out
}

func (g *Gateway) send(cmd protocol.Command) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteLine(cmd.Encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

// wait blocks on cond until ready reports true. Must be called with g.mu
// held. The wait is bounded by the configured timeout and the context; both
// wake the condition so the loop can observe them.
func (g *Gateway) wait(ctx context.Context, cond *sync.Cond, ready func() bool) error {
	var deadline time.Time
	if g.waitTimeout > 0 {
		deadline = time.Now().Add(g.waitTimeout)
		timer := time.AfterFunc(g.waitTimeout, cond.Broadcast)
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, cond.Broadcast)
	defer stop()

	for !ready() {
		if g.closed {
			return ErrConnectionLost
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return ErrWaitTimeout
		}
		cond.Wait()
	}
	return nil
}

func (g *Gateway) receive(conn Connection) {
	defer g.wg.Done()
	for {
		line, err := conn.ReadLine()
		if err != nil {
			g.mu.Lock()
			g.closed = true
			g.mu.Unlock()
			g.listCond.Broadcast()
			g.createCond.Broadcast()
			g.emitter.Emit(EventDisconnected)
			return
		}
		event, err := protocol.ParseEvent(line)
		if err != nil {
			g.logger.Debug().Err(err).Str("line", line).Msg("dropping unparseable relay line")
			continue
		}
		g.handle(event)
	}
}

func (g *Gateway) handle(event protocol.Event) {
	switch event.Kind {
	case protocol.EventRoom:
		// Listing entry: consumed by the blocking Rooms call, announced
		// there as one EventRoomList.
		g.appendRoom(event.Room)

	case protocol.EventNewRoom:
		g.appendRoom(event.Room)
		g.emitter.Emit(EventRoom, event.Room)

	case protocol.EventRoomCreated:
		g.appendRoom(event.Room)
		g.emitter.Emit(EventRoom, event.Room)
		if event.Room.Creator == g.username {
			g.mu.Lock()
			room := event.Room
			g.created = &room
			g.mu.Unlock()
			g.createCond.Broadcast()
		}

	case protocol.EventEndOfRoomList:
		g.mu.Lock()
		g.listLoaded = true
		g.mu.Unlock()
		g.listCond.Broadcast()
		g.emitter.Emit(EventRoomList, g.CachedRooms())

	case protocol.EventJoinedRoom:
		g.emitter.Emit(EventJoined, event.Room)

	case protocol.EventMessage:
		g.emitter.Emit(EventMessage, event.Text)

	case protocol.EventPrivateMessage:
		g.emitter.Emit(EventPrivate, event.Text)

	case protocol.EventSystem:
		g.emitter.Emit(EventSystem, event.Text)

	case protocol.EventClearUserList:
		g.mu.Lock()
		g.users = nil
		g.mu.Unlock()

	case protocol.EventUser:
		g.mu.Lock()
		g.users = append(g.users, event.User)
		g.mu.Unlock()

	case protocol.EventEndOfUserList:
		g.emitter.Emit(EventUsers, g.Users())

	case protocol.EventRoomNotFound, protocol.EventUserNotFound,
		protocol.EventUnknownCommand, protocol.EventMalformedCommand,
		protocol.EventSelfMessageRejected:
		g.emitter.Emit(EventError, event)
	}
}

func (g *Gateway) appendRoom(room protocol.Room) {
	g.mu.Lock()
	g.rooms = append(g.rooms, room)
	g.mu.Unlock()
}
