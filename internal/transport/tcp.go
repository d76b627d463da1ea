package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"go.uber.org/zap"
)

// DefaultDialTimeout bounds Connect on a TCP port.
const DefaultDialTimeout = 5 * time.Second

// TCPPort is a stream port over a TCP connection.
type TCPPort struct {
	addr        string
	dialTimeout time.Duration

	mu        sync.Mutex
	conn      net.Conn
	connected atomic.Bool
}

// NewTCPPort creates a port that dials addr on Connect.
func NewTCPPort(addr string) *TCPPort {
	return &TCPPort{addr: addr, dialTimeout: DefaultDialTimeout}
}

// NewTCPPortFromConn wraps an already established connection, such as one
// accepted by a listener.
func NewTCPPortFromConn(conn net.Conn) *TCPPort {
	p := &TCPPort{conn: conn}
	if conn.RemoteAddr() != nil {
		p.addr = conn.RemoteAddr().String()
	}
	return p
}

// Connect dials the remote address, or marks a wrapped connection as live.
func (p *TCPPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected.Load() {
		return nil
	}
	if p.conn == nil {
		dialer := net.Dialer{Timeout: p.dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", p.addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", p.addr, err)
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		p.conn = conn
	}
	p.connected.Store(true)
	logging.LogConnection(p.addr, "transport_connected")
	return nil
}

// Disconnect closes the connection. It is safe to call more than once.
func (p *TCPPort) Disconnect() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	wasConnected := p.connected.Swap(false)
	if conn == nil {
		return nil
	}
	if wasConnected {
		logging.LogConnection(p.addr, "transport_disconnected")
	}
	return conn.Close()
}

// IsConnected reports whether the port can carry I/O.
func (p *TCPPort) IsConnected() bool {
	return p.connected.Load()
}

func (p *TCPPort) current() (net.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || !p.connected.Load() {
		return nil, ErrNotConnected
	}
	return p.conn, nil
}

// SendBlocking writes all of buf or fails.
func (p *TCPPort) SendBlocking(buf []byte, timeout time.Duration) (int, error) {
	conn, err := p.current()
	if err != nil {
		return 0, err
	}
	if err := conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return 0, err
	}
	n, err := conn.Write(buf)
	if err != nil {
		if IsTimeout(err) {
			return n, fmt.Errorf("%w: wrote %d of %d bytes", ErrTimeout, n, len(buf))
		}
		return n, err
	}
	return n, nil
}

// RecvBlocking reads into buf. Without exact it returns after the first
// successful read. A closed connection reads as io.EOF.
func (p *TCPPort) RecvBlocking(buf []byte, timeout time.Duration, exact bool) (int, error) {
	conn, err := p.current()
	if err != nil {
		return 0, err
	}
	if err := conn.SetReadDeadline(deadline(timeout)); err != nil {
		if isClosed(err) {
			return 0, io.EOF
		}
		return 0, err
	}

	var n int
	if exact {
		n, err = io.ReadFull(conn, buf)
	} else {
		n, err = conn.Read(buf)
	}
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF) && n == 0:
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		logging.Debug("Stream closed inside an exact read",
			zap.String("remote_addr", p.addr),
			zap.Int("read", n),
			zap.Int("wanted", len(buf)),
		)
		return n, io.EOF
	case IsTimeout(err):
		if exact && n > 0 {
			return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(buf))
		}
		return n, ErrTimeout
	case isClosed(err):
		return n, io.EOF
	default:
		return n, err
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}

// Kind returns KindStream.
func (p *TCPPort) Kind() Kind {
	return KindStream
}

// RemoteAddr returns the peer address.
func (p *TCPPort) RemoteAddr() string {
	return p.addr
}
