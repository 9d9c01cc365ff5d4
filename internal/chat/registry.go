package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/minhvt/roomcast/pkg/protocol"
)

// ErrRoomNotFound reports a join against a room name no room carries.
var ErrRoomNotFound = errors.New("room not found")

// Room is a named broadcast group. Identity fields are immutable after
// creation; only the member set changes. The group address and port are
// allocated per room and carried on the wire but drive no delivery path.
type Room struct {
	desc protocol.Room

	mu      sync.Mutex
	members []string
}

// Descriptor returns the wire descriptor of the room.
func (r *Room) Descriptor() protocol.Room { return r.desc }

// Name returns the creator-supplied room name. Names are not unique.
func (r *Room) Name() string { return r.desc.Name }

// AddMember records a username as an occupant. Adding a present member is a
// no-op.
func (r *Room) AddMember(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m == username {
			return
		}
	}
	r.members = append(r.members, username)
}

// RemoveMember drops a username from the occupants. Removing an absent
// member is a no-op.
func (r *Room) RemoveMember(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m == username {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// Members returns a snapshot of the occupants in insertion order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

// Registry is the shared room table. All access is internally synchronized;
// the raw structures never escape. Rooms persist for the process lifetime,
// ids are monotonic and never reused.
type Registry struct {
	mu        sync.RWMutex
	rooms     []*Room
	nextID    int
	nextGroup int
	groupBase string
	portBase  int
}

// Defaults for the vestigial group address/port allocation.
const (
	DefaultGroupAddressBase = "230.0.0."
	DefaultGroupPortBase    = 5000
)

// NewRegistry creates an empty registry. Empty or zero bases fall back to the
// defaults.
func NewRegistry(groupBase string, portBase int) *Registry {
	if groupBase == "" {
		groupBase = DefaultGroupAddressBase
	}
	if portBase <= 0 {
		portBase = DefaultGroupPortBase
	}
	return &Registry{
		nextID:    1,
		nextGroup: 1,
		groupBase: groupBase,
		portBase:  portBase,
	}
}

// Create allocates the next id and group address/port pair, inserts the room,
// and returns it. Creation never fails; duplicate names are allowed.
func (g *Registry) Create(name, creator string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	group := g.nextGroup
	g.nextGroup++
	room := &Room{
		desc: protocol.Room{
			ID:           id,
			Name:         name,
			Creator:      creator,
			GroupAddress: fmt.Sprintf("%s%d", g.groupBase, group),
			GroupPort:    g.portBase + id,
		},
	}
	g.rooms = append(g.rooms, room)
	return room
}

// List returns a snapshot of all rooms in creation order.
func (g *Registry) List() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, len(g.rooms))
	copy(out, g.rooms)
	return out
}

// FindByName returns the first room created with the given name. Duplicate
// names are an acknowledged ambiguity: later rooms with the same name are
// unreachable by name.
func (g *Registry) FindByName(name string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.rooms {
		if r.desc.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, name)
}
