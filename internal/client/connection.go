package client

import (
	"bufio"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Connection is a client-side framed line connection to the relay.
type Connection interface {
	// ReadLine reads the next line without its terminator.
	ReadLine() (string, error)

	// WriteLine sends one line, appending the terminator.
	WriteLine(line string) error

	// Close closes the connection.
	Close() error
}

// TCPConnection speaks the line protocol over a plain TCP stream.
type TCPConnection struct {
	conn   net.Conn
	reader *bufio.Reader
}

// DialTCP connects to the relay's listen address.
func DialTCP(addr string) (*TCPConnection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPConnection{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (tc *TCPConnection) ReadLine() (string, error) {
	line, err := tc.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (tc *TCPConnection) WriteLine(line string) error {
	_, err := tc.conn.Write([]byte(line + "\n"))
	return err
}

func (tc *TCPConnection) Close() error {
	return tc.conn.Close()
}

// WebSocketConnection speaks the line protocol over a WebSocket, one text
// frame per line.
type WebSocketConnection struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// DialWebSocket connects to the relay's listen address and upgrades.
func DialWebSocket(addr string) (*WebSocketConnection, error) {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	if err != nil {
		return nil, err
	}
	return &WebSocketConnection{conn: conn}, nil
}

func (wc *WebSocketConnection) ReadLine() (string, error) {
	for {
		kind, data, err := wc.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

func (wc *WebSocketConnection) WriteLine(line string) error {
	wc.wmu.Lock()
	defer wc.wmu.Unlock()
	return wc.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (wc *WebSocketConnection) Close() error {
	return wc.conn.Close()
}
