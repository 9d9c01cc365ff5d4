// Package server runs the relay's single-port listener. Raw TCP line clients
// and WebSocket clients share the same port: the first bytes of each
// connection decide which transport adapter wraps it before the relay takes
// over.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/minhvt/roomcast/internal/chat"
	tcptransport "github.com/minhvt/roomcast/internal/transport/tcp"
	wstransport "github.com/minhvt/roomcast/internal/transport/ws"
)

// Server accepts connections and hands them to the relay.
type Server struct {
	cfg      Config
	relay    *chat.Relay
	logger   zerolog.Logger
	listener net.Listener
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New builds a server with a fresh registry and hub.
func New(cfg Config, logger zerolog.Logger) *Server {
	registry := chat.NewRegistry(cfg.GroupAddressBase, cfg.GroupPortBase)
	hub := chat.NewHub()
	return &Server{
		cfg:    cfg,
		relay:  chat.NewRelay(registry, hub, cfg.SessionBuffer, logger),
		logger: logger,
		quit:   make(chan struct{}),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Relay exposes the relay core, mainly for tests.
func (s *Server) Relay() *chat.Relay { return s.relay }

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).
		Msg("relay listening (TCP and WebSocket)")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.wg.Wait()
				return nil
			default:
				s.logger.Warn().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(conn)
		}()
	}
}

// Stop closes the listener and every live connection, then waits for the
// command loops to finish. Closing the raw connections also unblocks sessions
// still in protocol detection.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) serveConn(conn net.Conn) {
	kind, reader, err := detectProtocol(conn)
	if err != nil {
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).
			Msg("connection closed before a full protocol peek")
		_ = conn.Close()
		return
	}

	var framed chat.Conn
	switch kind {
	case protocolHTTP:
		rw := bufferedConn{reader: reader, conn: conn}
		if _, err := (ws.Upgrader{}).Upgrade(rw); err != nil {
			s.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).
				Msg("websocket upgrade failed")
			_ = conn.Close()
			return
		}
		framed = wstransport.NewConn(conn, rw)
	default:
		framed = tcptransport.NewConnWithReader(conn, reader)
	}

	s.relay.HandleConn(context.Background(), framed)
}
