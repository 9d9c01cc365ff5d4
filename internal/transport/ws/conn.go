// Package ws adapts a server-side WebSocket connection to the relay's
// line-framed Conn using gobwas/ws. Each text frame carries exactly one
// protocol line.
package ws

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn frames a WebSocket as one protocol line per text frame.
type Conn struct {
	conn net.Conn
	rw   io.ReadWriter
	wmu  sync.Mutex
}

// NewConn wraps an upgraded connection. rw carries any bytes buffered during
// protocol detection and the handshake; frames are read through it.
func NewConn(conn net.Conn, rw io.ReadWriter) *Conn {
	return &Conn{conn: conn, rw: rw}
}

// ReadLine implements chat.Conn. A close frame surfaces as io.EOF.
func (c *Conn) ReadLine(_ context.Context) (string, error) {
	data, err := wsutil.ReadClientText(c.rw)
	if err != nil {
		if _, ok := err.(wsutil.ClosedError); ok {
			return "", io.EOF
		}
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// WriteLine implements chat.Conn.
func (c *Conn) WriteLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return wsutil.WriteServerText(c.rw, []byte(line))
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = wsutil.WriteServerMessage(c.rw, ws.OpClose, nil)
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
