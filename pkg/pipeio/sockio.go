// Package pipeio wraps an accepted socket so that blocked reads can be
// cancelled when the owning client goes away.
package pipeio

import (
	"errors"
	"os"
	"sync"

	"github.com/muesli/cancelreader"
)

// ErrCanceled is returned by Read after Release.
var ErrCanceled = cancelreader.ErrCanceled

// SockIO is a ReadWriter over a socket file. It uses cancelable reads when
// the platform supports them and plain reads otherwise.
type SockIO struct {
	file   *os.File
	reader cancelreader.CancelReader

	mu       sync.Mutex
	reading  int
	released bool

	closeOnce sync.Once
}

// NewSockIO takes ownership of f.
func NewSockIO(f *os.File) *SockIO {
	s := &SockIO{file: f}

	reader, err := cancelreader.NewReader(f)
	if err != nil {
		return s
	}

	s.reader = reader
	return s
}

// Cancelable reports whether Release interrupts a blocked Read.
func (s *SockIO) Cancelable() bool {
	return s.reader != nil
}

// Read reads from the socket. After Release it returns ErrCanceled.
func (s *SockIO) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return 0, ErrCanceled
	}
	s.reading++
	s.mu.Unlock()

	var n int
	var err error
	if s.reader != nil {
		n, err = s.reader.Read(p)
	} else {
		n, err = s.file.Read(p)
	}

	s.mu.Lock()
	s.reading--
	last := s.released && s.reading == 0
	s.mu.Unlock()

	// the descriptors outlive every read that started before Release
	if last {
		s.close()
	}
	return n, err
}

// Write writes to the socket.
func (s *SockIO) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

// Release cancels pending reads. The socket is closed right away when no
// read is in flight, otherwise by the last read once it has returned.
func (s *SockIO) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	idle := s.reading == 0
	s.mu.Unlock()

	if s.reader != nil {
		s.reader.Cancel()
	}
	if idle {
		s.close()
	}
}

func (s *SockIO) close() {
	s.closeOnce.Do(func() {
		if s.reader != nil {
			s.reader.Close()
		}
		s.file.Close()
	})
}

// IsCanceled reports whether err came from a read interrupted by Release.
func IsCanceled(err error) bool {
	return errors.Is(err, cancelreader.ErrCanceled) || errors.Is(err, os.ErrClosed)
}
