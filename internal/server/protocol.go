package server

import (
	"bufio"
	"bytes"
	"io"
	"net"
)

type protocolType int

const (
	protocolTCP protocolType = iota
	protocolHTTP
)

// detectProtocol peeks at the first bytes of a connection to tell a raw line
// client from a WebSocket handshake. HTTP requests start with a method token;
// protocol commands start with a known verb, none of which collide.
func detectProtocol(conn net.Conn) (protocolType, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	peek, err := reader.Peek(4)
	if err != nil {
		return protocolTCP, reader, err
	}

	if bytes.HasPrefix(peek, []byte("GET ")) ||
		bytes.HasPrefix(peek, []byte("POST")) ||
		bytes.HasPrefix(peek, []byte("PUT ")) ||
		bytes.HasPrefix(peek, []byte("HEAD")) {
		return protocolHTTP, reader, nil
	}

	return protocolTCP, reader, nil
}

// bufferedConn reads through the detection buffer and writes straight to the
// underlying connection, for the WebSocket handshake and frames.
type bufferedConn struct {
	reader *bufio.Reader
	conn   net.Conn
}

func (b bufferedConn) Read(p []byte) (int, error)  { return b.reader.Read(p) }
func (b bufferedConn) Write(p []byte) (int, error) { return b.conn.Write(p) }

var _ io.ReadWriter = bufferedConn{}
