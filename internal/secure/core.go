package secure

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
)

// maxRecordPlaintext is the largest plaintext one TLS record carries.
const maxRecordPlaintext = 16 * 1024

// tlsCore is a tls.Client over a memoryConn, shared by both engines. The
// handshake runs on its own goroutine; the engines differ only in how they
// drive it.
type tlsCore struct {
	id *Identity

	mu           sync.Mutex
	bio          *memoryConn
	conn         *tls.Conn
	started      bool
	done         bool
	handshakeErr error
	established  bool
	broken       error
	cancel       context.CancelFunc

	encMu   sync.Mutex
	decMu   sync.Mutex
	scratch []byte
}

// prepare discards any previous client and builds a new one.
func (c *tlsCore) prepare() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bio != nil {
		_ = c.bio.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.bio = newMemoryConn()
	c.conn = tls.Client(c.bio, clientConfig(c.id))
	c.started = false
	c.done = false
	c.handshakeErr = nil
	c.established = false
	c.broken = nil
	c.cancel = nil
}

// start launches the handshake goroutine once. The ClientHello is in the
// output buffer when the goroutine first parks.
func (c *tlsCore) start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("secure: prepare was not called")
	}
	if c.started {
		return nil
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	conn, bio := c.conn, c.bio
	go func() {
		err := conn.HandshakeContext(ctx)
		c.mu.Lock()
		c.done = true
		c.handshakeErr = err
		c.mu.Unlock()
		bio.finish()
	}()
	return nil
}

// step waits until the handshake goroutine needs input or returned, then
// collects its output.
func (c *tlsCore) step() ([]byte, error) {
	c.mu.Lock()
	bio := c.bio
	c.mu.Unlock()
	if bio == nil {
		return nil, errors.New("secure: prepare was not called")
	}

	bio.waitIdle()
	out := bio.drain()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done && c.handshakeErr != nil {
		return out, fmt.Errorf("tls: %w", c.handshakeErr)
	}
	return out, nil
}

func (c *tlsCore) feed(data []byte) error {
	c.mu.Lock()
	bio := c.bio
	c.mu.Unlock()
	if bio == nil {
		return errors.New("secure: prepare was not called")
	}
	bio.feed(data)
	return nil
}

// complete reports whether the handshake finished successfully.
func (c *tlsCore) complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done && c.handshakeErr == nil
}

// reset switches to the data phase with empty buffers.
func (c *tlsCore) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bio == nil {
		return
	}
	c.bio.reset()
	c.established = c.done && c.handshakeErr == nil
}

func (c *tlsCore) dataConn() (*tls.Conn, *memoryConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.established {
		return nil, nil, ErrNotEstablished
	}
	return c.conn, c.bio, nil
}

func (c *tlsCore) encrypt(plaintext []byte) ([]byte, error) {
	conn, bio, err := c.dataConn()
	if err != nil {
		return nil, err
	}

	c.encMu.Lock()
	defer c.encMu.Unlock()
	if err := c.brokenErr(); err != nil {
		return nil, err
	}
	if _, err := conn.Write(plaintext); err != nil {
		bio.drain()
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return bio.drain(), nil
}

// decrypt opens one frame body holding whole records. Bodies rejected by
// checkRecords are dropped without touching the tls.Conn. Any error from the
// tls.Conn itself is permanent and breaks the channel.
func (c *tlsCore) decrypt(ciphertext []byte) ([]byte, error) {
	conn, bio, err := c.dataConn()
	if err != nil {
		return nil, err
	}

	c.decMu.Lock()
	defer c.decMu.Unlock()
	if err := c.brokenErr(); err != nil {
		return nil, err
	}
	if err := checkRecords(ciphertext); err != nil {
		return nil, err
	}
	if c.scratch == nil {
		c.scratch = make([]byte, maxRecordPlaintext)
	}

	bio.feed(ciphertext)
	var plaintext []byte
	for {
		n, err := conn.Read(c.scratch)
		plaintext = append(plaintext, c.scratch[:n]...)
		if err == nil {
			continue
		}
		if errors.Is(err, errWouldBlock) {
			break
		}
		return nil, c.markBroken(err)
	}
	if len(plaintext) == 0 {
		return nil, ErrIncompleteRecord
	}
	return plaintext, nil
}

// markBroken records err as the reason the channel is unusable. The alert
// crypto/tls queued for the peer is discarded.
func (c *tlsCore) markBroken(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken == nil {
		c.broken = fmt.Errorf("%w: %v", ErrChannelBroken, err)
	}
	if c.bio != nil {
		c.bio.drain()
	}
	return c.broken
}

func (c *tlsCore) brokenErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

func (c *tlsCore) state() tls.ConnectionState {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return tls.ConnectionState{}
	}
	return conn.ConnectionState()
}

func (c *tlsCore) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.bio != nil {
		_ = c.bio.Close()
	}
	c.established = false
	return nil
}
