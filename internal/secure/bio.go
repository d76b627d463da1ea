package secure

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"
)

// errWouldBlock is returned by memoryConn.Read in the data phase when no
// ciphertext is buffered. crypto/tls treats temporary net errors as
// non-sticky, so the same tls.Conn keeps working on the next record.
var errWouldBlock net.Error = wouldBlockError{}

type wouldBlockError struct{}

func (wouldBlockError) Error() string   { return "secure: no buffered record" }
func (wouldBlockError) Timeout() bool   { return true }
func (wouldBlockError) Temporary() bool { return true }

type memoryAddr struct{}

func (memoryAddr) Network() string { return "memory" }
func (memoryAddr) String() string  { return "headunit-tls" }

// memoryConn is the transport under tls.Conn. Bytes the TLS stack writes are
// collected for the caller to frame; bytes the caller feeds are what the TLS
// stack reads.
//
// While blocking is set (handshake phase) Read parks on an empty buffer and
// marks the connection idle; the handshake driver waits for that idle point
// before collecting the next flight.
type memoryConn struct {
	mu       sync.Mutex
	cond     *sync.Cond
	in       bytes.Buffer
	out      bytes.Buffer
	blocking bool
	idle     bool
	finished bool
	closed   bool
}

func newMemoryConn() *memoryConn {
	c := &memoryConn{blocking: true}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *memoryConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.in.Len() == 0 {
		if c.closed {
			c.idle = false
			return 0, io.EOF
		}
		if !c.blocking {
			return 0, errWouldBlock
		}
		c.idle = true
		c.cond.Broadcast()
		c.cond.Wait()
	}
	c.idle = false
	return c.in.Read(p)
}

func (c *memoryConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	return c.out.Write(p)
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	return nil
}

// feed appends inbound ciphertext.
func (c *memoryConn) feed(p []byte) {
	c.mu.Lock()
	c.in.Write(p)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// drain returns and clears everything the TLS stack wrote.
func (c *memoryConn) drain() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out.Len() == 0 {
		return nil
	}
	out := bytes.Clone(c.out.Bytes())
	c.out.Reset()
	return out
}

// waitIdle blocks until the handshake goroutine is parked on empty input or
// has returned.
func (c *memoryConn) waitIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.finished && !c.closed && !(c.idle && c.in.Len() == 0) {
		c.cond.Wait()
	}
}

// finish records that the handshake goroutine returned.
func (c *memoryConn) finish() {
	c.mu.Lock()
	c.finished = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// reset drops residual handshake bytes and switches Read to non-blocking.
func (c *memoryConn) reset() {
	c.mu.Lock()
	c.in.Reset()
	c.out.Reset()
	c.blocking = false
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *memoryConn) LocalAddr() net.Addr                { return memoryAddr{} }
func (c *memoryConn) RemoteAddr() net.Addr               { return memoryAddr{} }
func (c *memoryConn) SetDeadline(_ time.Time) error      { return nil }
func (c *memoryConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *memoryConn) SetWriteDeadline(_ time.Time) error { return nil }
