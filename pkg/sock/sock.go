// Package sock is the platform socket subsystem used by the acceptor. It
// exposes raw IPv4 stream sockets as integer handles so that listening
// endpoints can be built without going through net.Listener.
package sock

import (
	"errors"
	"net/netip"
	"strconv"
	"time"
)

// Handle identifies a platform socket.
type Handle int

// InvalidHandle is the sentinel for "no socket".
const InvalidHandle Handle = -1

// Valid reports whether h refers to a socket.
func (h Handle) Valid() bool {
	return h >= 0
}

func (h Handle) String() string {
	if !h.Valid() {
		return "invalid"
	}
	return strconv.Itoa(int(h))
}

// SizeofSockaddrInet4 is the length of a platform IPv4 socket address.
const SizeofSockaddrInet4 = 16

// Family is a socket address family.
type Family int

// Address families reported by LocalAddr.
const (
	FamilyUnknown Family = iota
	FamilyInet4
	FamilyInet6
	FamilyUnix
)

func (f Family) String() string {
	switch f {
	case FamilyInet4:
		return "inet4"
	case FamilyInet6:
		return "inet6"
	case FamilyUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// Peer is the address returned by Accept. Len is the length of the
// platform address structure that was filled in.
type Peer struct {
	Addr netip.AddrPort
	Len  int
}

var (
	// ErrWouldBlock is returned when a non-blocking call has nothing to do.
	ErrWouldBlock = errors.New("operation would block")
	// ErrAddrInUse is returned by Bind when the address is taken.
	ErrAddrInUse = errors.New("address already in use")
)

// Platform is the socket subsystem. Attach and Release are reference
// counted; every successful Attach must be matched by one Release.
type Platform interface {
	Attach() error
	Release()

	Socket() (Handle, error)
	SetReuseAddr(h Handle) error
	Bind(h Handle, addr netip.AddrPort) error
	LocalAddr(h Handle) (Family, netip.AddrPort, error)
	Listen(h Handle, backlog int) error
	Accept(h Handle) (Handle, Peer, error)
	SetNonblock(h Handle) error
	// Poll waits up to timeout for h to become readable.
	Poll(h Handle, timeout time.Duration) (bool, error)
	Close(h Handle) error
}
