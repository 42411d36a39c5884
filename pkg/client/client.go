// Package client implements the per-connection client objects created for
// accepted sockets. A client echoes what its peer sends and reports every
// completed read and write through its notification hub.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"

	"dominicbreuker/cas/pkg/log"
	"dominicbreuker/cas/pkg/mux"
	"dominicbreuker/cas/pkg/notify"
	"dominicbreuker/cas/pkg/pipeio"
	"dominicbreuker/cas/pkg/sock"
)

// Completion types reported to the hub.
const (
	TypeRead uint = iota + 1
	TypeWrite
)

const bufferSize = 16 * 1024

// Options configure a client.
type Options struct {
	Logger *log.Logger
	Mux    bool          // serve the connection as a multiplexed session
	Lock   notify.Locker // nil means the process-wide notification lock
}

// Stats counts completed operations of a client.
type Stats struct {
	Reads    uint64
	Writes   uint64
	BytesIn  uint64
	BytesOut uint64
	Streams  uint64
}

// Client owns one accepted connection.
type Client struct {
	peer   netip.AddrPort
	logger *log.Logger
	mux    bool
	hub    *notify.Hub
	rw     *pipeio.SockIO // plain mode only; owned by hub
	stats  *counters

	mu     sync.Mutex
	closed bool
}

// fileIO is the delegate attached until Serve picks a transport.
type fileIO struct {
	f *os.File
}

func (f fileIO) Release() { f.f.Close() }

// New takes ownership of h. It fails only before doing so, in which case
// the caller still owns h.
func New(h sock.Handle, peer netip.AddrPort, opts Options) (*Client, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("client for %s: invalid socket", peer)
	}
	if !peer.IsValid() {
		return nil, fmt.Errorf("client on socket %s: invalid peer address", h)
	}

	c := &Client{
		peer:   peer,
		logger: opts.Logger,
		mux:    opts.Mux,
		stats:  &counters{},
	}
	c.hub = notify.New(&recorder{Base: notify.Base{Logger: opts.Logger}, peer: peer, stats: c.stats}, opts.Logger, opts.Lock)

	f := os.NewFile(uintptr(h), "client "+peer.String())
	if opts.Mux {
		c.hub.Attach(fileIO{f: f})
	} else {
		c.rw = pipeio.NewSockIO(f)
		c.hub.Attach(c.rw)
	}

	return c, nil
}

// HostName returns the peer address.
func (c *Client) HostName() string {
	return c.peer.String()
}

// Stats returns a snapshot of the completed operations.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Close releases the connection. Blocked reads return and Serve ends.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.hub.Close()
	return nil
}

// Serve runs the client until the peer disconnects, an I/O error occurs,
// ctx is cancelled or Close is called.
func (c *Client) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	if c.mux {
		return c.serveMux(ctx)
	}
	return c.servePlain(ctx)
}

func (c *Client) servePlain(ctx context.Context) error {
	if c.isClosed() {
		return nil
	}
	return c.echo(ctx, c.rw, c.peer.String())
}

func (c *Client) serveMux(ctx context.Context) error {
	session, err := c.startSession(ctx)
	if err != nil || session == nil {
		return err
	}
	return c.acceptStreams(ctx, session)
}

// startSession moves the connection from the raw file to a multiplexed
// session, keeping the hub the owner throughout.
func (c *Client) startSession(ctx context.Context) (*mux.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil
	}
	fio, ok := c.hub.Detach().(fileIO)
	if !ok {
		return nil, fmt.Errorf("client %s: not in mux mode", c.peer)
	}

	conn, err := net.FileConn(fio.f)
	fio.Release()
	if err != nil {
		c.hub.ExceptionNotify(ctx, log.StatusInternal, fmt.Sprintf("net.FileConn(%s): %s", c.peer, err))
		return nil, fmt.Errorf("net.FileConn(%s): %w", c.peer, err)
	}

	session, err := mux.Serve(conn)
	if err != nil {
		conn.Close()
		c.hub.ExceptionNotify(ctx, log.StatusInternal, err.Error())
		return nil, err
	}
	c.hub.Attach(session)
	return session, nil
}

func (c *Client) acceptStreams(ctx context.Context, session *mux.Session) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		stream, err := session.Accept()
		if err != nil {
			if session.Closed() {
				return nil
			}
			c.hub.ExceptionNotify(ctx, log.StatusIOError, fmt.Sprintf("%s: %s", c.peer, err))
			return err
		}

		c.stats.streams.Add(1)
		name := fmt.Sprintf("%s#%d", c.peer, stream.StreamID())
		c.logger.VerboseMsg("New stream %s", name)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stream.Close()

			if err := c.echo(ctx, stream, name); err == nil {
				c.hub.CompletionNotify(ctx)
			}
		}()
	}
}

// echo copies everything read from rw back to it.
func (c *Client) echo(ctx context.Context, rw io.ReadWriter, name string) error {
	buf := make([]byte, bufferSize)

	for {
		n, err := rw.Read(buf)
		if n > 0 {
			c.hub.CompletionNotifyData(ctx, TypeRead, uint64(n), buf[:n])

			w, werr := rw.Write(buf[:n])
			if w > 0 {
				c.hub.CompletionNotifyData(ctx, TypeWrite, uint64(w), buf[:w])
			}
			if werr != nil {
				if c.isClosed() {
					return nil
				}
				c.hub.ExceptionNotifyData(ctx, log.StatusIOError, fmt.Sprintf("write to %s: %s", name, werr), TypeWrite, uint64(n-w))
				return werr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.VerboseMsg("Peer %s disconnected", name)
				return nil
			}
			if c.isClosed() || pipeio.IsCanceled(err) {
				return nil
			}
			c.hub.ExceptionNotifyData(ctx, log.StatusIOError, fmt.Sprintf("read from %s: %s", name, err), TypeRead, 0)
			return err
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type counters struct {
	reads, writes, bytesIn, bytesOut, streams atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Reads:    c.reads.Load(),
		Writes:   c.writes.Load(),
		BytesIn:  c.bytesIn.Load(),
		BytesOut: c.bytesOut.Load(),
		Streams:  c.streams.Load(),
	}
}

// recorder counts completions and leaves exceptions to the default
// signaling.
type recorder struct {
	notify.Base
	peer  netip.AddrPort
	stats *counters
}

func (r *recorder) CompletionNotify(ctx context.Context) {
	r.Logger.DebugMsg(2, "%s: stream completed", r.peer)
}

func (r *recorder) CompletionNotifyData(ctx context.Context, typ uint, count uint64, data []byte) {
	switch typ {
	case TypeRead:
		r.stats.reads.Add(1)
		r.stats.bytesIn.Add(count)
	case TypeWrite:
		r.stats.writes.Add(1)
		r.stats.bytesOut.Add(count)
	default:
		r.Base.CompletionNotifyData(ctx, typ, count, data)
		return
	}
	r.Logger.DebugMsg(3, "%s: type=%d count=%d", r.peer, typ, count)
}
