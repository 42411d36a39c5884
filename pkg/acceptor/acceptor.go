// Package acceptor owns the server's listening endpoint and turns inbound
// connection attempts into client objects.
package acceptor

import (
	"errors"
	"fmt"
	"net/netip"
	"runtime"
	"sync"
	"time"

	"dominicbreuker/cas/pkg/config"
	"dominicbreuker/cas/pkg/log"
	"dominicbreuker/cas/pkg/sock"
)

// connectPendQueueSize is the listen backlog. 5 is the conventional
// built-in TCP/IP maximum for this use.
const connectPendQueueSize = 5

// Client is a connection handed out by a ClientFactory.
type Client interface {
	HostName() string
}

// ClientFactory takes ownership of an accepted socket. When it returns an
// error it must not have closed or retained h; the acceptor closes it.
type ClientFactory func(h sock.Handle, peer netip.AddrPort) (Client, error)

// Acceptor is a bound IPv4 listening endpoint. Close may be called while
// another goroutine waits in WaitReadable; it takes effect once that wait
// has returned, so the socket is never closed under a pending call.
type Acceptor struct {
	platform sock.Platform
	logger   *log.Logger

	addr     netip.AddrPort
	fallback bool

	mu          sync.RWMutex // guards handle and nonBlocking
	handle      sock.Handle
	nonBlocking bool

	closeOnce sync.Once
	closeErr  error
}

// New binds and listens on requested. If the requested port is taken, the
// endpoint falls back once to an ephemeral port. Every failure releases
// whatever was acquired before returning.
func New(requested netip.AddrPort, logger *log.Logger, deps *config.Dependencies) (*Acceptor, error) {
	platform := config.GetPlatform(deps)

	if err := platform.Attach(); err != nil {
		return nil, fmt.Errorf("%w: attach socket subsystem: %w", ErrResourceUnavailable, err)
	}

	a := &Acceptor{
		platform: platform,
		logger:   logger,
		handle:   sock.InvalidHandle,
	}
	if err := a.open(requested); err != nil {
		a.Close()
		return nil, err
	}

	logger.VerboseMsg("Listening socket %s bound to %s", a.handle, a.addr)
	return a, nil
}

func (a *Acceptor) open(requested netip.AddrPort) error {
	ip := requested.Addr().Unmap()
	if !ip.Is4() {
		return fmt.Errorf("%w: %s is not an IPv4 address", ErrInternal, requested)
	}

	h, err := a.platform.Socket()
	if err != nil {
		a.logger.ErrorMsg("No socket error was %s", err)
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	a.handle = h

	// release the port promptly in case we exit early
	if err := a.platform.SetReuseAddr(h); err != nil {
		a.logger.ErrorMsg("server set SO_REUSEADDR failed? %s", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	addr := netip.AddrPortFrom(ip, requested.Port())
	err = a.platform.Bind(h, addr)
	if errors.Is(err, sock.ErrAddrInUse) && addr.Port() != 0 {
		a.logger.WarnMsg("Port %d is in use, binding an ephemeral port instead", addr.Port())
		addr = netip.AddrPortFrom(ip, 0)
		if err = a.platform.Bind(h, addr); err == nil {
			a.fallback = true
		}
	}
	if err != nil {
		_, file, line, _ := runtime.Caller(0)
		a.logger.SignalFormatted(log.StatusBindFail, file, line,
			"- bind TCP IP addr=%s failed because %s", addr, err)
		if errors.Is(err, sock.ErrAddrInUse) {
			return fmt.Errorf("%w: %w: bind %s: %w", ErrBindFailure, ErrAddressInUse, addr, err)
		}
		return fmt.Errorf("%w: bind %s: %w", ErrBindFailure, addr, err)
	}

	family, local, err := a.platform.LocalAddr(h)
	if err != nil {
		a.logger.ErrorMsg("getsockname() error %s", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	// the address and port are read from here later on
	if family != sock.FamilyInet4 {
		return fmt.Errorf("%w: bound address family is %s, want inet4", ErrInternal, family)
	}
	a.addr = local

	if err := a.platform.Listen(h, connectPendQueueSize); err != nil {
		a.logger.ErrorMsg("listen() error %s", err)
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return nil
}

// Close releases the socket and the subsystem reference. Calls after the
// first return the first result.
func (a *Acceptor) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		if a.handle.Valid() {
			a.closeErr = a.platform.Close(a.handle)
			a.handle = sock.InvalidHandle
		}
		a.platform.Release()
	})
	return a.closeErr
}

// Accept takes one pending connection and hands it to newClient. It
// reports false when nothing is pending or the attempt failed; failures
// are logged and the endpoint stays usable.
func (a *Acceptor) Accept(newClient ClientFactory) (Client, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.handle.Valid() {
		return nil, false
	}

	h, peer, err := a.platform.Accept(a.handle)
	if err != nil {
		if !errors.Is(err, ErrWouldBlock) {
			a.logger.ErrorMsg("accept error %s", err)
		}
		return nil, false
	}

	if peer.Len != sock.SizeofSockaddrInet4 {
		a.platform.Close(h)
		a.logger.ErrorMsg("%s: accept returned bad address len %d?", ErrMalformedAccept, peer.Len)
		return nil, false
	}

	c, err := newClient(h, peer.Addr)
	if err != nil {
		a.platform.Close(h)
		a.logger.ErrorMsg("Creating client for %s: %s", peer.Addr, err)
		return nil, false
	}

	a.logger.VerboseMsg("allocated client object for %q", c.HostName())
	return c, true
}

// SetNonBlocking switches the listening socket to non-blocking mode. A
// failure is logged and Accept keeps blocking.
func (a *Acceptor) SetNonBlocking() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.handle.Valid() {
		return
	}
	if err := a.platform.SetNonblock(a.handle); err != nil {
		a.logger.ErrorMsg("server non blocking IO set fail because %q", err)
		return
	}
	a.nonBlocking = true
}

// NonBlocking reports whether SetNonBlocking succeeded.
func (a *Acceptor) NonBlocking() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nonBlocking
}

// WaitReadable waits up to timeout for a pending connection. It returns
// ErrClosed after Close.
func (a *Acceptor) WaitReadable(timeout time.Duration) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.handle.Valid() {
		return false, ErrClosed
	}
	return a.platform.Poll(a.handle, timeout)
}

// FileDescriptor returns the listening socket.
func (a *Acceptor) FileDescriptor() sock.Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.handle
}

// Show prints the endpoint state when level is above 2.
func (a *Acceptor) Show(level uint) {
	if level > 2 {
		a.mu.RLock()
		defer a.mu.RUnlock()
		a.logger.InfoMsg(" acceptor sock = %s addr = %s nonblocking = %t", a.handle, a.addr, a.nonBlocking)
	}
}

// PortNumber returns the port actually bound, which differs from the
// requested one after an ephemeral fallback.
func (a *Acceptor) PortNumber() uint16 {
	return a.addr.Port()
}

// Addr returns the bound address.
func (a *Acceptor) Addr() netip.AddrPort {
	return a.addr
}

// EphemeralFallback reports whether the requested port was busy and the
// endpoint was bound to an OS-assigned port instead.
func (a *Acceptor) EphemeralFallback() bool {
	return a.fallback
}
