//go:build unix

package sock

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

var (
	defaultOnce     sync.Once
	defaultPlatform *Unix
)

// Default returns the process-wide unix platform.
func Default() Platform {
	defaultOnce.Do(func() {
		defaultPlatform = &Unix{}
	})
	return defaultPlatform
}

// Unix implements Platform on top of BSD sockets.
type Unix struct {
	refs atomic.Int64
}

// Attach takes a reference on the subsystem. Unix sockets need no global
// initialization, so this only counts.
func (u *Unix) Attach() error {
	u.refs.Add(1)
	return nil
}

// Release drops a reference taken by Attach.
func (u *Unix) Release() {
	if u.refs.Add(-1) < 0 {
		panic("sock: Release without Attach")
	}
}

// Refs returns the number of outstanding references.
func (u *Unix) Refs() int64 {
	return u.refs.Load()
}

// Socket creates a close-on-exec IPv4 stream socket.
func (u *Unix) Socket() (Handle, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return InvalidHandle, fmt.Errorf("unix.Socket(AF_INET, SOCK_STREAM): %w", err)
	}
	unix.CloseOnExec(fd)
	return Handle(fd), nil
}

// SetReuseAddr sets SO_REUSEADDR so a restarted server can rebind promptly.
func (u *Unix) SetReuseAddr(h Handle) error {
	if err := unix.SetsockoptInt(int(h), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("unix.SetsockoptInt(SO_REUSEADDR): %w", err)
	}
	return nil
}

// Bind binds h to an IPv4 address.
func (u *Unix) Bind(h Handle, addr netip.AddrPort) error {
	ip := addr.Addr().Unmap()
	if !ip.Is4() {
		return fmt.Errorf("bind %s: not an IPv4 address", addr)
	}

	sa := &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	if err := unix.Bind(int(h), sa); err != nil {
		if errors.Is(err, unix.EADDRINUSE) {
			return fmt.Errorf("%w: %w", ErrAddrInUse, err)
		}
		return err
	}
	return nil
}

// LocalAddr returns the address h is bound to.
func (u *Unix) LocalAddr(h Handle) (Family, netip.AddrPort, error) {
	sa, err := unix.Getsockname(int(h))
	if err != nil {
		return FamilyUnknown, netip.AddrPort{}, fmt.Errorf("unix.Getsockname(): %w", err)
	}

	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return FamilyInet4, netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)), nil
	case *unix.SockaddrInet6:
		return FamilyInet6, netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)), nil
	case *unix.SockaddrUnix:
		return FamilyUnix, netip.AddrPort{}, nil
	default:
		return FamilyUnknown, netip.AddrPort{}, nil
	}
}

// Listen marks h as accepting connections.
func (u *Unix) Listen(h Handle, backlog int) error {
	if err := unix.Listen(int(h), backlog); err != nil {
		return fmt.Errorf("unix.Listen(): %w", err)
	}
	return nil
}

// Accept takes the next pending connection from h. It returns an error
// wrapping ErrWouldBlock if h is non-blocking and nothing is pending.
func (u *Unix) Accept(h Handle) (Handle, Peer, error) {
	nfd, sa, err := unix.Accept(int(h))
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return InvalidHandle, Peer{}, fmt.Errorf("%w: %w", ErrWouldBlock, err)
		}
		return InvalidHandle, Peer{}, err
	}
	unix.CloseOnExec(nfd)

	return Handle(nfd), toPeer(sa), nil
}

func toPeer(sa unix.Sockaddr) Peer {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return Peer{
			Addr: netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)),
			Len:  unix.SizeofSockaddrInet4,
		}
	case *unix.SockaddrInet6:
		return Peer{
			Addr: netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)),
			Len:  unix.SizeofSockaddrInet6,
		}
	default:
		return Peer{}
	}
}

// SetNonblock switches h to non-blocking mode.
func (u *Unix) SetNonblock(h Handle) error {
	if err := unix.SetNonblock(int(h), true); err != nil {
		return fmt.Errorf("unix.SetNonblock(): %w", err)
	}
	return nil
}

// Poll waits for h to become readable. An interrupted wait reports false.
func (u *Unix) Poll(h Handle, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(h), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("unix.Poll(): %w", err)
	}

	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// Close closes h.
func (u *Unix) Close(h Handle) error {
	return unix.Close(int(h))
}
