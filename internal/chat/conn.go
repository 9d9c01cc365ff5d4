// Package chat holds the relay-side domain logic: the room registry, the
// per-connection sessions, the broadcast router, and the command loop. It is
// transport-agnostic; TCP and WebSocket adapters live under
// internal/transport.
package chat

import "context"

// Conn abstracts a framed line connection for both TCP and WebSocket.
// This interface isolates transport details from the relay logic.
type Conn interface {
	// ReadLine reads the next line without its terminator.
	// Returns io.EOF when the peer closes.
	ReadLine(ctx context.Context) (string, error)

	// WriteLine sends one line, appending the terminator.
	WriteLine(line string) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging and message origin.
	RemoteAddr() string
}
