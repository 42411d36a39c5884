// Package server runs the reactor loop that polls the listening endpoint
// and serves every accepted client on its own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"dominicbreuker/cas/pkg/acceptor"
	"dominicbreuker/cas/pkg/client"
	"dominicbreuker/cas/pkg/config"
	"dominicbreuker/cas/pkg/log"
	"dominicbreuker/cas/pkg/semaphore"
	"dominicbreuker/cas/pkg/sock"
)

// DefaultShutdownTimeout is how long shutdown waits for clients when the
// config sets no timeout.
const DefaultShutdownTimeout = 5 * time.Second

// Server owns the listening endpoint and the clients accepted from it.
type Server struct {
	cfg      *config.Server
	logger   *log.Logger
	acceptor *acceptor.Acceptor
	slots    *semaphore.ClientSlots

	mu      sync.Mutex
	clients map[*client.Client]struct{}

	done      chan struct{} // closed by Close
	closeOnce sync.Once
}

// New binds the listening endpoint described by cfg.
func New(cfg *config.Server) (*Server, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.LogLevel())
	}

	addr, err := cfg.BindAddr()
	if err != nil {
		return nil, fmt.Errorf("bind address: %w", err)
	}

	a, err := acceptor.New(addr, logger, cfg.Deps)
	if err != nil {
		return nil, fmt.Errorf("acceptor.New(%s): %w", addr, err)
	}
	if a.EphemeralFallback() {
		logger.WarnMsg("Port %d is busy, serving on port %d instead", cfg.Port, a.PortNumber())
	}

	a.SetNonBlocking()
	a.Show(logger.Level())

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultShutdownTimeout
	}

	return &Server{
		cfg:      cfg,
		logger:   logger,
		acceptor: a,
		slots:    semaphore.New(cfg.MaxClients, timeout),
		clients:  make(map[*client.Client]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Port returns the port the server listens on.
func (s *Server) Port() uint16 {
	return s.acceptor.PortNumber()
}

// Addr returns the address the server listens on.
func (s *Server) Addr() netip.AddrPort {
	return s.acceptor.Addr()
}

// Serve accepts clients until ctx is cancelled or Close is called, then
// closes the endpoint and waits for connected clients to finish.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.InfoMsg("Listening on %s", s.acceptor.Addr())

	for ctx.Err() == nil && !s.closed() {
		ready, err := s.acceptor.WaitReadable(s.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, acceptor.ErrClosed) {
				break
			}
			s.logger.ErrorMsg("Waiting for connections: %s", err)
			sleep(ctx, s.cfg.PollInterval)
			continue
		}
		if !ready {
			continue
		}

		for {
			c, ok := s.acceptor.Accept(s.newClient)
			if !ok {
				break
			}
			s.start(ctx, c.(*client.Client))

			// a blocking endpoint would stall the loop on the next attempt
			if !s.acceptor.NonBlocking() {
				break
			}
		}
	}

	return s.shutdown()
}

// Close releases the listening endpoint and disconnects all clients. A
// running Serve stops and returns.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	err := s.acceptor.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	return err
}

func (s *Server) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) shutdown() error {
	s.logger.VerboseMsg("Shutting down, %d clients connected", s.slots.InUse())

	if err := s.Close(); err != nil {
		s.logger.ErrorMsg("Closing listener: %s", err)
	}

	if err := s.slots.Drain(context.Background()); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newClient is the client factory handed to the acceptor. It refuses the
// connection, leaving the socket to the acceptor, when all slots are taken.
func (s *Server) newClient(h sock.Handle, peer netip.AddrPort) (acceptor.Client, error) {
	if !s.slots.TryAcquire() {
		return nil, fmt.Errorf("%d clients connected, refusing %s", s.slots.InUse(), peer)
	}

	c, err := client.New(h, peer, client.Options{
		Logger: s.logger,
		Mux:    s.cfg.Mux,
	})
	if err != nil {
		s.slots.Release()
		return nil, err
	}
	return c, nil
}

func (s *Server) start(ctx context.Context, c *client.Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer s.slots.Release()
		defer func() {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
		}()
		defer c.Close()

		s.logger.InfoMsg("New connection from %s", c.HostName())
		if err := c.Serve(ctx); err != nil {
			s.logger.ErrorMsg("Handling %s: %s", c.HostName(), err)
		}
		s.logger.InfoMsg("Connection from %s lost", c.HostName())
	}()
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
