package acceptor

import (
	"errors"

	"dominicbreuker/cas/pkg/sock"
)

// Error kinds reported by the acceptor. Construction errors wrap one of
// ErrResourceUnavailable, ErrBindFailure or ErrInternal; a bind that failed
// on an address conflict additionally wraps ErrAddressInUse.
var (
	ErrResourceUnavailable = errors.New("socket resource unavailable")
	ErrAddressInUse        = errors.New("address in use")
	ErrBindFailure         = errors.New("bind failed")
	ErrInternal            = errors.New("internal failure")
	ErrMalformedAccept     = errors.New("malformed accept")
	ErrClosed              = errors.New("acceptor closed")

	// ErrWouldBlock is not a failure: nothing is pending on the endpoint.
	ErrWouldBlock = sock.ErrWouldBlock
)
