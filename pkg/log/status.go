package log

import "fmt"

// Status is a numeric condition code raised through Logger.Signal.
type Status int

// Known status codes.
const (
	StatusOK Status = iota
	StatusInternal
	StatusNoFD
	StatusBindFail
	StatusIOError
	StatusDisconnect
	StatusTimeout
)

var statusNames = map[Status]string{
	StatusOK:         "normal successful completion",
	StatusInternal:   "internal server failure",
	StatusNoFD:       "no file descriptors available",
	StatusBindFail:   "unable to bind server address",
	StatusIOError:    "I/O error",
	StatusDisconnect: "peer disconnected",
	StatusTimeout:    "operation timed out",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status %d", int(s))
}
