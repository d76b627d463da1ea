package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write the close message on disconnect
	closeWait = time.Second

	// Buffered inbound messages before the reader goroutine blocks
	inboundQueue = 64
)

// WebSocketPort is a message port: every binary WebSocket message carries one
// protocol frame. Gorilla read errors are permanent, so a reader goroutine
// owns ReadMessage and RecvBlocking waits on its queue with a timer.
type WebSocketPort struct {
	url    string
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	inbound   chan []byte
	stop      chan struct{}
	done      chan struct{}
	readErr   error

	writeMu sync.Mutex

	// recvMu guards pending, the unread tail of the last message
	recvMu  sync.Mutex
	pending []byte
}

// NewWebSocketPort creates a port that dials url on Connect.
func NewWebSocketPort(url string) *WebSocketPort {
	return &WebSocketPort{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: DefaultDialTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  64 * 1024,
		},
	}
}

// NewWebSocketPortFromConn wraps an upgraded server-side connection.
func NewWebSocketPortFromConn(conn *websocket.Conn) *WebSocketPort {
	return &WebSocketPort{url: conn.RemoteAddr().String(), conn: conn}
}

// Connect dials the WebSocket endpoint and starts the reader.
func (p *WebSocketPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected.Load() {
		return nil
	}
	if p.conn == nil {
		conn, resp, err := p.dialer.DialContext(ctx, p.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return fmt.Errorf("websocket dial %s: %w", p.url, err)
		}
		p.conn = conn
	}

	p.inbound = make(chan []byte, inboundQueue)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.readErr = nil
	p.connected.Store(true)
	go p.readLoop(p.conn, p.inbound, p.stop, p.done)

	logging.LogConnection(p.url, "websocket_connected")
	return nil
}

func (p *WebSocketPort) readLoop(conn *websocket.Conn, inbound chan<- []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("WebSocket closed by peer", zap.String("remote_addr", p.url))
			} else if p.connected.Load() {
				logging.Info("WebSocket read failed",
					zap.String("remote_addr", p.url),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			logging.Warn("Ignoring non-binary WebSocket message",
				zap.String("remote_addr", p.url),
				zap.Int("message_type", msgType),
			)
			continue
		}
		select {
		case inbound <- data:
		case <-stop:
			return
		}
	}
}

// Disconnect sends a close message and closes the connection.
func (p *WebSocketPort) Disconnect() error {
	p.mu.Lock()
	conn := p.conn
	stop, done := p.stop, p.done
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if !p.connected.Swap(false) {
		return conn.Close()
	}
	close(stop)

	p.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait))
	p.writeMu.Unlock()

	err := conn.Close()
	if done != nil {
		<-done
	}
	logging.LogConnection(p.url, "websocket_disconnected")
	return err
}

// IsConnected reports whether the port can carry I/O.
func (p *WebSocketPort) IsConnected() bool {
	return p.connected.Load()
}

// SendBlocking writes buf as one binary message.
func (p *WebSocketPort) SendBlocking(buf []byte, timeout time.Duration) (int, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil || !p.connected.Load() {
		return 0, ErrNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return 0, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		if IsTimeout(err) {
			return 0, ErrTimeout
		}
		return 0, err
	}
	return len(buf), nil
}

// RecvBlocking copies buffered message bytes into buf. Without exact it
// returns at most the rest of one message.
func (p *WebSocketPort) RecvBlocking(buf []byte, timeout time.Duration, exact bool) (int, error) {
	p.mu.Lock()
	inbound := p.inbound
	p.mu.Unlock()
	if inbound == nil || !p.connected.Load() {
		return 0, ErrNotConnected
	}

	p.recvMu.Lock()
	defer p.recvMu.Unlock()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	n := 0
	for n < len(buf) {
		if len(p.pending) == 0 {
			select {
			case data := <-inbound:
				p.pending = data
			case <-p.doneChan():
				select {
				case data := <-inbound:
					p.pending = data
					continue
				default:
				}
				if n > 0 && !exact {
					return n, nil
				}
				return n, p.closedErr()
			case <-timer:
				if exact && n > 0 {
					return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(buf))
				}
				if n > 0 {
					return n, nil
				}
				return 0, ErrTimeout
			}
		}
		copied := copy(buf[n:], p.pending)
		p.pending = p.pending[copied:]
		n += copied
		if !exact {
			return n, nil
		}
	}
	return n, nil
}

func (p *WebSocketPort) doneChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *WebSocketPort) closedErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var closeErr *websocket.CloseError
	if p.readErr == nil || errors.As(p.readErr, &closeErr) {
		return io.EOF
	}
	return fmt.Errorf("%w: %v", io.EOF, p.readErr)
}

// Kind returns KindMessage.
func (p *WebSocketPort) Kind() Kind {
	return KindMessage
}

// RemoteAddr returns the endpoint address.
func (p *WebSocketPort) RemoteAddr() string {
	return p.url
}
