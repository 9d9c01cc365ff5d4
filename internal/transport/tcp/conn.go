// Package tcp adapts a raw TCP connection to the relay's line-framed Conn.
package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
)

// Conn frames a net.Conn as newline-terminated lines.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn)}
}

// NewConnWithReader wraps a net.Conn whose leading bytes were already
// buffered for protocol detection.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// ReadLine implements chat.Conn. The context is accepted for interface
// parity; reads block until the next line or a connection error, and Close
// unblocks them.
func (c *Conn) ReadLine(_ context.Context) (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine implements chat.Conn.
func (c *Conn) WriteLine(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
