// Package mocks provides mock implementations for testing.
package mocks

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"dominicbreuker/cas/pkg/sock"
)

// Operations that can be scripted to fail with MockPlatform.Fail.
const (
	OpAttach      = "attach"
	OpSocket      = "socket"
	OpReuseAddr   = "reuseaddr"
	OpBind        = "bind"
	OpLocalAddr   = "localaddr"
	OpListen      = "listen"
	OpAccept      = "accept"
	OpSetNonblock = "setnonblock"
	OpPoll        = "poll"
)

// MockPlatform simulates the socket subsystem in memory. Ports marked busy
// fail to bind with sock.ErrAddrInUse; port 0 binds to the next ephemeral
// port. Pending connections are queued with Push.
type MockPlatform struct {
	mu sync.Mutex

	refs       int
	nextHandle sock.Handle
	nextPort   uint16
	busy       map[uint16]bool
	bound      map[sock.Handle]netip.AddrPort
	listening  map[sock.Handle]bool
	nonblock   map[sock.Handle]bool
	open       map[sock.Handle]bool
	closed     []sock.Handle
	pending    []sock.Peer
	failures   map[string]error
	family     sock.Family
	binds      []netip.AddrPort
	backlog    int
}

// NewMockPlatform creates an empty mock platform.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		nextHandle: 3,
		nextPort:   40000,
		busy:       make(map[uint16]bool),
		bound:      make(map[sock.Handle]netip.AddrPort),
		listening:  make(map[sock.Handle]bool),
		nonblock:   make(map[sock.Handle]bool),
		open:       make(map[sock.Handle]bool),
		failures:   make(map[string]error),
		family:     sock.FamilyInet4,
	}
}

var _ sock.Platform = (*MockPlatform)(nil)

// Fail makes every subsequent call of op return err. A nil err clears it.
func (m *MockPlatform) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Occupy marks port as bound by another process.
func (m *MockPlatform) Occupy(port uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[port] = true
}

// SetFamily sets the family LocalAddr reports.
func (m *MockPlatform) SetFamily(f sock.Family) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.family = f
}

// Push queues an inbound connection from peer.
func (m *MockPlatform) Push(peer sock.Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, peer)
}

// Refs returns the outstanding subsystem references.
func (m *MockPlatform) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Open returns the number of handles not yet closed.
func (m *MockPlatform) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// Closed returns the handles closed so far, in order.
func (m *MockPlatform) Closed() []sock.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sock.Handle(nil), m.closed...)
}

// Binds returns every address Bind was called with.
func (m *MockPlatform) Binds() []netip.AddrPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]netip.AddrPort(nil), m.binds...)
}

// Backlog returns the backlog passed to the last Listen.
func (m *MockPlatform) Backlog() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backlog
}

// NonBlocking reports whether h was switched to non-blocking mode.
func (m *MockPlatform) NonBlocking(h sock.Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonblock[h]
}

func (m *MockPlatform) Attach() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpAttach]; err != nil {
		return err
	}
	m.refs++
	return nil
}

func (m *MockPlatform) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs--
}

func (m *MockPlatform) Socket() (sock.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSocket]; err != nil {
		return sock.InvalidHandle, err
	}
	return m.newHandle(), nil
}

func (m *MockPlatform) newHandle() sock.Handle {
	h := m.nextHandle
	m.nextHandle++
	m.open[h] = true
	return h
}

func (m *MockPlatform) SetReuseAddr(h sock.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[OpReuseAddr]
}

func (m *MockPlatform) Bind(h sock.Handle, addr netip.AddrPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.binds = append(m.binds, addr)
	if err := m.failures[OpBind]; err != nil {
		return err
	}
	if addr.Port() != 0 && m.busy[addr.Port()] {
		return fmt.Errorf("%w: bind %s", sock.ErrAddrInUse, addr)
	}

	port := addr.Port()
	if port == 0 {
		port = m.nextPort
		m.nextPort++
	}
	m.busy[port] = true
	m.bound[h] = netip.AddrPortFrom(addr.Addr(), port)
	return nil
}

func (m *MockPlatform) LocalAddr(h sock.Handle) (sock.Family, netip.AddrPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpLocalAddr]; err != nil {
		return sock.FamilyUnknown, netip.AddrPort{}, err
	}
	return m.family, m.bound[h], nil
}

func (m *MockPlatform) Listen(h sock.Handle, backlog int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpListen]; err != nil {
		return err
	}
	m.backlog = backlog
	m.listening[h] = true
	return nil
}

// Accept pops the next pushed peer, or reports sock.ErrWouldBlock.
func (m *MockPlatform) Accept(h sock.Handle) (sock.Handle, sock.Peer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpAccept]; err != nil {
		return sock.InvalidHandle, sock.Peer{}, err
	}
	if !m.listening[h] {
		return sock.InvalidHandle, sock.Peer{}, fmt.Errorf("accept on non-listening handle %s", h)
	}
	if len(m.pending) == 0 {
		return sock.InvalidHandle, sock.Peer{}, fmt.Errorf("%w: accept", sock.ErrWouldBlock)
	}

	peer := m.pending[0]
	m.pending = m.pending[1:]
	return m.newHandle(), peer, nil
}

func (m *MockPlatform) SetNonblock(h sock.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSetNonblock]; err != nil {
		return err
	}
	m.nonblock[h] = true
	return nil
}

// Poll reports readiness immediately when a connection is pending and
// otherwise sleeps for timeout.
func (m *MockPlatform) Poll(h sock.Handle, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	err := m.failures[OpPoll]
	ready := len(m.pending) > 0
	m.mu.Unlock()

	if err != nil {
		return false, err
	}
	if !ready {
		time.Sleep(timeout)
	}
	return ready, nil
}

func (m *MockPlatform) Close(h sock.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open[h] {
		return fmt.Errorf("close of unknown handle %s", h)
	}
	delete(m.open, h)
	if addr, ok := m.bound[h]; ok {
		delete(m.busy, addr.Port())
		delete(m.bound, h)
	}
	delete(m.listening, h)
	m.closed = append(m.closed, h)
	return nil
}
