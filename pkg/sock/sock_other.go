//go:build !unix

package sock

import (
	"errors"
	"net/netip"
	"time"
)

var errUnsupported = errors.New("sockets are not supported on this platform")

// Default returns a platform that fails every call.
func Default() Platform {
	return unsupported{}
}

type unsupported struct{}

func (unsupported) Attach() error                       { return errUnsupported }
func (unsupported) Release()                            {}
func (unsupported) Socket() (Handle, error)             { return InvalidHandle, errUnsupported }
func (unsupported) SetReuseAddr(Handle) error           { return errUnsupported }
func (unsupported) Bind(Handle, netip.AddrPort) error   { return errUnsupported }
func (unsupported) Listen(Handle, int) error            { return errUnsupported }
func (unsupported) SetNonblock(Handle) error            { return errUnsupported }
func (unsupported) Close(Handle) error                  { return errUnsupported }
func (unsupported) Accept(Handle) (Handle, Peer, error) { return InvalidHandle, Peer{}, errUnsupported }
func (unsupported) Poll(Handle, time.Duration) (bool, error) {
	return false, errUnsupported
}
func (unsupported) LocalAddr(Handle) (Family, netip.AddrPort, error) {
	return FamilyUnknown, netip.AddrPort{}, errUnsupported
}
