//go:build unix

package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"dominicbreuker/cas/pkg/log"
	"dominicbreuker/cas/pkg/mux"
	"dominicbreuker/cas/pkg/notify"
	"dominicbreuker/cas/pkg/sock"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// acceptedHandle returns a raw accepted socket, its peer address and the
// dialing side of the connection.
func acceptedHandle(t *testing.T) (sock.Handle, netip.AddrPort, net.Conn) {
	t.Helper()

	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer l.Close()

	peer, err := net.Dial("tcp4", l.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial() error = %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	conn, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	f, err := conn.(*net.TCPConn).File()
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		t.Fatalf("syscall.Dup() error = %v", err)
	}
	f.Close()
	conn.Close()

	return sock.Handle(fd), netip.MustParseAddrPort(peer.LocalAddr().String()), peer
}

func serve(t *testing.T, ctx context.Context, c *Client) <-chan error {
	t.Helper()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Serve(ctx) }()
	return errCh
}

func waitServe(t *testing.T, errCh <-chan error) error {
	t.Helper()

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return")
		return nil
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New(sock.InvalidHandle, netip.MustParseAddrPort("10.0.0.1:1"), Options{}); err == nil {
		t.Error("New() accepted an invalid handle")
	}
	if _, err := New(sock.Handle(3), netip.AddrPort{}, Options{}); err == nil {
		t.Error("New() accepted an invalid peer")
	}
}

func TestClient_Echo(t *testing.T) {
	t.Parallel()

	h, addr, peer := acceptedHandle(t)
	c, err := New(h, addr, Options{Logger: log.NewLoggerTo(&bytes.Buffer{}, 0), Lock: &notify.Lock{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if c.HostName() != addr.String() {
		t.Errorf("HostName() = %q, want %q", c.HostName(), addr)
	}

	errCh := serve(t, context.Background(), c)

	peer.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := peer.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(peer, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("echo = %q, want hello", buf)
	}

	peer.Close()
	if err := waitServe(t, errCh); err != nil {
		t.Errorf("Serve() error = %v", err)
	}

	st := c.Stats()
	if st.BytesIn != 5 || st.BytesOut != 5 {
		t.Errorf("Stats() = %+v, want 5 bytes each way", st)
	}
	if st.Reads == 0 || st.Writes == 0 {
		t.Errorf("Stats() = %+v, want reads and writes", st)
	}
}

func TestClient_CloseStopsServe(t *testing.T) {
	t.Parallel()

	h, addr, _ := acceptedHandle(t)
	c, err := New(h, addr, Options{Lock: &notify.Lock{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	errCh := serve(t, context.Background(), c)
	time.Sleep(20 * time.Millisecond)
	c.Close()

	if err := waitServe(t, errCh); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestClient_CloseStopsServeRepeatedly(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		h, addr, _ := acceptedHandle(t)
		c, err := New(h, addr, Options{Lock: &notify.Lock{}})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		errCh := serve(t, context.Background(), c)
		time.Sleep(time.Duration(i%4) * time.Millisecond)
		c.Close()

		if err := waitServe(t, errCh); err != nil {
			t.Errorf("run %d: Serve() error = %v", i, err)
		}
	}
}

func TestClient_ContextCancelStopsServe(t *testing.T) {
	t.Parallel()

	h, addr, _ := acceptedHandle(t)
	c, err := New(h, addr, Options{Lock: &notify.Lock{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := serve(t, ctx, c)
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := waitServe(t, errCh); err != nil {
		t.Errorf("Serve() error = %v", err)
	}
}

func TestClient_ServeAfterClose(t *testing.T) {
	t.Parallel()

	for _, useMux := range []bool{false, true} {
		h, addr, _ := acceptedHandle(t)
		c, err := New(h, addr, Options{Mux: useMux, Lock: &notify.Lock{}})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		c.Close()
		if err := c.Serve(context.Background()); err != nil {
			t.Errorf("Serve(mux=%v) after Close() error = %v", useMux, err)
		}
	}
}

func TestClient_MuxEcho(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	h, addr, peer := acceptedHandle(t)
	c, err := New(h, addr, Options{Mux: true, Logger: log.NewLoggerTo(&logs, 2), Lock: &notify.Lock{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	errCh := serve(t, context.Background(), c)

	session, err := mux.Dial(peer)
	if err != nil {
		t.Fatalf("mux.Dial() error = %v", err)
	}

	stream, err := session.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stream.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := stream.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("echo = %q, want ping", buf)
	}
	stream.Close()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "stream completed") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	session.Close()
	if err := waitServe(t, errCh); err != nil {
		t.Errorf("Serve() error = %v", err)
	}

	st := c.Stats()
	if st.Streams != 1 || st.BytesIn != 4 || st.BytesOut != 4 {
		t.Errorf("Stats() = %+v, want 1 stream with 4 bytes each way", st)
	}
	if !strings.Contains(logs.String(), "stream completed") {
		t.Errorf("missing stream completion in %q", logs.String())
	}
}
