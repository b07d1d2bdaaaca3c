package mgmtproto

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/jbride/mujina/internal/mjerr"
)

// Timeout boundaries for a single SendPacket call. These match the
// original bitaxe-raw control channel exactly: a channel under contention
// fails fast rather than queuing indefinitely, since a stuck management
// link usually means the serial port itself needs to be closed and
// reopened by the backplane, not retried.
const (
	lockTimeout  = 2 * time.Second
	writeTimeout = 1 * time.Second
	readTimeout  = 1 * time.Second
)

// Channel is the exclusive-access control channel to a board's management
// protocol endpoint. At most one SendPacket call is ever in flight; a
// second concurrent caller blocks on the channel's mutex until the first
// completes or the lock-acquire timeout elapses.
type Channel struct {
	mu     sync.Mutex
	w      io.Writer
	r      *bufio.Reader
	nextID byte
}

// NewChannel wraps stream in a management-protocol control channel.
func NewChannel(stream io.ReadWriter) *Channel {
	return &Channel{
		w: stream,
		r: bufio.NewReader(stream),
	}
}

// SendPacket stamps p with the next packet ID, writes it, and waits for a
// response carrying the same ID. A response with a mismatched ID is a
// protocol error, not something to retry or ignore.
func (c *Channel) SendPacket(ctx context.Context, p Packet) (Response, error) {
	locked := make(chan struct{})
	go func() {
		c.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-time.After(lockTimeout):
		return Response{}, mjerr.ProtocolErr("control channel lock timeout (possible deadlock)")
	case <-ctx.Done():
		return Response{}, mjerr.WrapProtocol(ctx.Err(), "control channel lock cancelled")
	}
	defer c.mu.Unlock()

	p.ID = c.nextID
	c.nextID++
	expectedID := p.ID

	writeErrCh := make(chan error, 1)
	go func() { writeErrCh <- encode(c.w, p) }()
	select {
	case err := <-writeErrCh:
		if err != nil {
			return Response{}, mjerr.WrapProtocol(err, "control command write failed")
		}
	case <-time.After(writeTimeout):
		return Response{}, mjerr.ProtocolErr("control command write timeout")
	}

	readErrCh := make(chan error, 1)
	respCh := make(chan Response, 1)
	go func() {
		resp, err := decode(c.r)
		if err != nil {
			readErrCh <- err
			return
		}
		respCh <- resp
	}()

	var resp Response
	select {
	case resp = <-respCh:
	case err := <-readErrCh:
		return Response{}, mjerr.WrapProtocol(err, "control command read failed")
	case <-time.After(readTimeout):
		return Response{}, mjerr.ProtocolErr("control command read timeout")
	}

	if resp.ID != expectedID {
		return Response{}, mjerr.ProtocolErr("response ID mismatch: expected %d, got %d", expectedID, resp.ID)
	}
	if err := resp.Error(); err != nil {
		return Response{}, mjerr.WrapProtocol(err, "control protocol error")
	}
	return resp, nil
}
