package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Room is the wire descriptor of a room. GroupAddress and GroupPort are
// informational only: they are allocated per room and carried on every room
// event, but no group transport is built on them.
type Room struct {
	ID           int
	Name         string
	Creator      string
	GroupAddress string
	GroupPort    int
}

// fields renders the descriptor body shared by the Room, RoomCreated and
// NewRoom events, keeping the three byte-identical for the same room.
func (r Room) fields() string {
	return fmt.Sprintf("%d %s %s %s %d", r.ID, r.Name, r.Creator, r.GroupAddress, r.GroupPort)
}

// EventKind identifies a relay-to-client line.
type EventKind string

const (
	EventRoom                EventKind = "Room"
	EventEndOfRoomList       EventKind = "EndOfRoomList"
	EventRoomCreated         EventKind = "RoomCreated"
	EventNewRoom             EventKind = "NewRoom"
	EventJoinedRoom          EventKind = "JoinedRoom"
	EventMessage             EventKind = "Message"
	EventPrivateMessage      EventKind = "PrivateMessage"
	EventSystem              EventKind = "System"
	EventClearUserList       EventKind = "ClearUserList"
	EventUser                EventKind = "User"
	EventEndOfUserList       EventKind = "EndOfUserList"
	EventRoomNotFound        EventKind = "RoomNotFound"
	EventUserNotFound        EventKind = "UserNotFound"
	EventUnknownCommand      EventKind = "UnknownCommand"
	EventMalformedCommand    EventKind = "MalformedCommand"
	EventSelfMessageRejected EventKind = "SelfMessageRejected"
)

// Event is a parsed relay line.
type Event struct {
	Kind EventKind
	Room Room   // Room, RoomCreated, NewRoom; ID and Name only for JoinedRoom
	User string // User entry, UserNotFound recipient
	Text string // rendered remainder of Message/PrivateMessage, body of System
}

// ErrMalformedEvent reports a relay line that does not parse.
var ErrMalformedEvent = errors.New("malformed event")

// ParseEvent parses one relay line.
func ParseEvent(line string) (Event, error) {
	kind, rest, hasRest := strings.Cut(line, " ")
	switch EventKind(kind) {
	case EventEndOfRoomList, EventClearUserList, EventEndOfUserList,
		EventRoomNotFound, EventUnknownCommand, EventMalformedCommand,
		EventSelfMessageRejected:
		if hasRest {
			return Event{}, fmt.Errorf("%w: %s carries no fields", ErrMalformedEvent, kind)
		}
		return Event{Kind: EventKind(kind)}, nil
	case EventRoom, EventRoomCreated, EventNewRoom:
		room, err := parseRoomFields(rest)
		if err != nil {
			return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, kind, err)
		}
		return Event{Kind: EventKind(kind), Room: room}, nil
	case EventJoinedRoom:
		idField, name, ok := strings.Cut(rest, " ")
		if !ok || name == "" {
			return Event{}, fmt.Errorf("%w: JoinedRoom wants <id> <name>", ErrMalformedEvent)
		}
		id, err := strconv.Atoi(idField)
		if err != nil {
			return Event{}, fmt.Errorf("%w: JoinedRoom id: %v", ErrMalformedEvent, err)
		}
		return Event{Kind: EventJoinedRoom, Room: Room{ID: id, Name: name}}, nil
	case EventUser:
		if rest == "" {
			return Event{}, fmt.Errorf("%w: User wants a name", ErrMalformedEvent)
		}
		return Event{Kind: EventUser, User: rest}, nil
	case EventUserNotFound:
		if rest == "" {
			return Event{}, fmt.Errorf("%w: UserNotFound wants a name", ErrMalformedEvent)
		}
		return Event{Kind: EventUserNotFound, User: rest}, nil
	case EventMessage, EventPrivateMessage:
		if rest == "" {
			return Event{}, fmt.Errorf("%w: %s wants a body", ErrMalformedEvent, kind)
		}
		return Event{Kind: EventKind(kind), Text: rest}, nil
	case EventSystem:
		body, ok := strings.CutPrefix(rest, "- ")
		if !hasRest || !ok {
			return Event{}, fmt.Errorf("%w: System wants '- <text>'", ErrMalformedEvent)
		}
		return Event{Kind: EventSystem, Text: body}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrMalformedEvent, kind)
	}
}

func parseRoomFields(rest string) (Room, error) {
	parts := strings.SplitN(rest, " ", 5)
	if len(parts) != 5 {
		return Room{}, fmt.Errorf("want 5 fields, got %d", len(parts))
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Room{}, fmt.Errorf("id: %v", err)
	}
	port, err := strconv.Atoi(parts[4])
	if err != nil {
		return Room{}, fmt.Errorf("port: %v", err)
	}
	return Room{
		ID:           id,
		Name:         parts[1],
		Creator:      parts[2],
		GroupAddress: parts[3],
		GroupPort:    port,
	}, nil
}

// RoomLine renders one entry of a GetRooms listing.
func RoomLine(r Room) string { return string(EventRoom) + " " + r.fields() }

// RoomCreatedLine confirms a creation to the requesting session.
func RoomCreatedLine(r Room) string { return string(EventRoomCreated) + " " + r.fields() }

// NewRoomLine announces a creation to every other session.
func NewRoomLine(r Room) string { return string(EventNewRoom) + " " + r.fields() }

// JoinedRoomLine confirms a join to the requesting session.
func JoinedRoomLine(r Room) string {
	return fmt.Sprintf("%s %d %s", EventJoinedRoom, r.ID, r.Name)
}

// MessageLine renders a room broadcast attributed to its sender.
func MessageLine(origin, sender, text string) string {
	return fmt.Sprintf("%s [%s] - %s: %s", EventMessage, origin, sender, text)
}

// PrivateFromLine is the recipient's copy of a direct message.
func PrivateFromLine(origin, sender, text string) string {
	return fmt.Sprintf("%s From [%s] - %s: %s", EventPrivateMessage, origin, sender, text)
}

// PrivateToLine is the sender's echo of a direct message.
func PrivateToLine(origin, recipient, text string) string {
	return fmt.Sprintf("%s To [%s] - %s: %s", EventPrivateMessage, origin, recipient, text)
}

// SystemLine renders a free-text notice such as a join or leave announcement.
func SystemLine(text string) string { return fmt.Sprintf("%s - %s", EventSystem, text) }

// UserLine renders one member entry of a user-list refresh.
func UserLine(name string) string { return string(EventUser) + " " + name }

// UserNotFoundLine reports a missing private-message recipient.
func UserNotFoundLine(name string) string { return string(EventUserNotFound) + " " + name }
