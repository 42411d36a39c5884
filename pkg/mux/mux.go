// Package mux serves a client connection as a multiplexed session. Each
// stream the peer opens is an independent asynchronous operation.
package mux

import (
	"fmt"
	"io"
	"log"
	"net"

	"github.com/hashicorp/yamux"
)

// Session is the server side of a multiplexed client connection.
type Session struct {
	mux *yamux.Session
}

// Serve starts a server session on conn. The session owns conn.
func Serve(conn net.Conn) (*Session, error) {
	session, err := yamux.Server(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Server(conn): %s", err)
	}

	return &Session{mux: session}, nil
}

// Accept waits for the next stream opened by the peer.
func (s *Session) Accept() (*yamux.Stream, error) {
	stream, err := s.mux.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("session.AcceptStream(): %w", err)
	}
	return stream, nil
}

// NumStreams returns the number of open streams.
func (s *Session) NumStreams() int {
	return s.mux.NumStreams()
}

// Release closes the session, all its streams and the connection.
func (s *Session) Release() {
	s.mux.Close() // best effort
}

// Closed reports whether the session has shut down.
func (s *Session) Closed() bool {
	return s.mux.IsClosed()
}

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = nil
	cfg.Logger = log.New(io.Discard, "", log.LstdFlags) // discard all console logging in yamux
	return cfg
}

// Dial opens a client session on conn. Peers talking to a multiplexing
// server use it.
func Dial(conn net.Conn) (*yamux.Session, error) {
	session, err := yamux.Client(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Client(conn): %s", err)
	}
	return session, nil
}
