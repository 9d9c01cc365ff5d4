// Package protocol implements the line-oriented wire protocol spoken between
// the relay and its clients. Every frame is a single newline-terminated line;
// fields are separated by single spaces and the last field of a command may
// contain spaces verbatim.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Verb identifies a client command.
type Verb string

const (
	VerbGetRooms    Verb = "GetRooms"
	VerbCreateRoom  Verb = "CreateRoom"
	VerbJoinRoom    Verb = "JoinRoom"
	VerbLeaveRoom   Verb = "LeaveRoom"
	VerbSendMessage Verb = "SendMessage"
)

// TargetAll is the SendMessage recipient that addresses the whole room.
const TargetAll = "All"

var (
	// ErrUnknownCommand reports a line whose first token is not a known verb.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedCommand reports a known verb with the wrong field count.
	ErrMalformedCommand = errors.New("malformed command")
)

// Command is a parsed client request.
type Command struct {
	Verb     Verb
	RoomName string // CreateRoom, JoinRoom
	Username string // CreateRoom creator, JoinRoom username
	Target   string // SendMessage recipient or TargetAll
	Text     string // SendMessage body, may contain spaces
}

// ParseCommand parses one request line. Verbs are case-sensitive exact
// matches; a recognized verb with missing or extra fields yields
// ErrMalformedCommand, anything else ErrUnknownCommand.
func ParseCommand(line string) (Command, error) {
	verb, rest, _ := strings.Cut(line, " ")
	switch Verb(verb) {
	case VerbGetRooms:
		if rest != "" {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrMalformedCommand, verb)
		}
		return Command{Verb: VerbGetRooms}, nil
	case VerbLeaveRoom:
		if rest != "" {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrMalformedCommand, verb)
		}
		return Command{Verb: VerbLeaveRoom}, nil
	case VerbCreateRoom, VerbJoinRoom:
		name, user, ok := strings.Cut(rest, " ")
		if !ok || name == "" || user == "" || strings.Contains(user, " ") {
			return Command{}, fmt.Errorf("%w: %s wants <room> <username>", ErrMalformedCommand, verb)
		}
		return Command{Verb: Verb(verb), RoomName: name, Username: user}, nil
	case VerbSendMessage:
		target, text, ok := strings.Cut(rest, " ")
		if !ok || target == "" || text == "" {
			return Command{}, fmt.Errorf("%w: %s wants <recipient> <text>", ErrMalformedCommand, verb)
		}
		return Command{Verb: VerbSendMessage, Target: target, Text: text}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}
}

// Encode renders the command as a wire line (without the trailing newline).
func (c Command) Encode() string {
	switch c.Verb {
	case VerbCreateRoom, VerbJoinRoom:
		return fmt.Sprintf("%s %s %s", c.Verb, c.RoomName, c.Username)
	case VerbSendMessage:
		return fmt.Sprintf("%s %s %s", c.Verb, c.Target, c.Text)
	default:
		return string(c.Verb)
	}
}
