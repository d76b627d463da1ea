package secure

import (
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

// HandshakeStatus tells an Engine caller what to do next.
type HandshakeStatus int

const (
	NotHandshaking HandshakeStatus = iota
	NeedTask
	NeedWrap
	NeedUnwrap
	Finished
)

func (s HandshakeStatus) String() string {
	switch s {
	case NotHandshaking:
		return "not-handshaking"
	case NeedTask:
		return "need-task"
	case NeedWrap:
		return "need-wrap"
	case NeedUnwrap:
		return "need-unwrap"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// EngineStatus is the outcome of one Wrap or Unwrap call.
type EngineStatus int

const (
	StatusOK EngineStatus = iota
	StatusBufferUnderflow
	StatusClosed
)

// EngineResult reports what Wrap or Unwrap did.
type EngineResult struct {
	Status    EngineStatus
	Handshake HandshakeStatus
	Consumed  int
	Produced  int
}

// Engine exposes the TLS client through wrap/unwrap calls. During the
// handshake Unwrap only buffers input and reports NeedTask; the caller must
// run every DelegatedTask before it wraps or unwraps again.
type Engine struct {
	core tlsCore

	mu      sync.Mutex
	status  HandshakeStatus
	pending []byte
	err     error
}

// NewEngine creates an engine-style TLS client.
func NewEngine(id *Identity) *Engine {
	return &Engine{core: tlsCore{id: id}}
}

// BeginHandshake prepares a new client. The first delegated task produces
// the ClientHello.
func (e *Engine) BeginHandshake() {
	e.core.prepare()
	e.mu.Lock()
	e.status = NeedTask
	e.pending = nil
	e.err = nil
	e.mu.Unlock()
}

// HandshakeStatus returns the pending action. Finished is reported once,
// after which the engine is NotHandshaking.
func (e *Engine) HandshakeStatus() HandshakeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the handshake failure, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// DelegatedTask returns the work the engine needs run before it can make
// progress, or nil.
func (e *Engine) DelegatedTask() func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != NeedTask {
		return nil
	}
	return e.runTask
}

func (e *Engine) runTask() {
	err := e.core.start()
	var out []byte
	if err == nil {
		out, err = e.core.step()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, out...)
	switch {
	case err != nil:
		e.err = err
		e.status = NotHandshaking
	case len(e.pending) > 0:
		e.status = NeedWrap
	case e.core.complete():
		e.status = Finished
	default:
		e.status = NeedUnwrap
	}
}

// Wrap produces outbound bytes. While handshaking src is ignored and the
// pending flight is appended to dst; afterwards src is encrypted.
func (e *Engine) Wrap(src, dst []byte) (EngineResult, []byte, error) {
	e.mu.Lock()
	status := e.status
	if status == NeedWrap {
		out := e.pending
		e.pending = nil
		if e.core.complete() {
			e.status = Finished
		} else {
			e.status = NeedUnwrap
		}
		res := EngineResult{Status: StatusOK, Handshake: e.status, Produced: len(out)}
		e.mu.Unlock()
		return res, append(dst, out...), nil
	}
	e.mu.Unlock()

	if status != NotHandshaking {
		return EngineResult{Status: StatusOK, Handshake: status}, dst, nil
	}
	out, err := e.core.encrypt(src)
	if err != nil {
		return EngineResult{Status: StatusClosed}, dst, err
	}
	return EngineResult{Status: StatusOK, Consumed: len(src), Produced: len(out)}, append(dst, out...), nil
}

// Unwrap consumes inbound bytes. While handshaking they are buffered for the
// next delegated task; afterwards src is decrypted. A truncated record
// reports StatusBufferUnderflow and consumes nothing.
func (e *Engine) Unwrap(src, dst []byte) (EngineResult, []byte, error) {
	e.mu.Lock()
	status := e.status
	if status == NeedUnwrap {
		if err := e.core.feed(src); err != nil {
			e.mu.Unlock()
			return EngineResult{Status: StatusClosed}, dst, err
		}
		e.status = NeedTask
		e.mu.Unlock()
		return EngineResult{Status: StatusOK, Handshake: NeedTask, Consumed: len(src)}, dst, nil
	}
	e.mu.Unlock()

	if status != NotHandshaking {
		return EngineResult{Status: StatusOK, Handshake: status}, dst, nil
	}
	plain, err := e.core.decrypt(src)
	switch {
	case errors.Is(err, ErrIncompleteRecord):
		return EngineResult{Status: StatusBufferUnderflow}, dst, nil
	case errors.Is(err, ErrMalformedRecord):
		return EngineResult{Status: StatusOK}, dst, err
	}
	if err != nil {
		return EngineResult{Status: StatusClosed}, dst, err
	}
	return EngineResult{Status: StatusOK, Consumed: len(src), Produced: len(plain)}, append(dst, plain...), nil
}

// acknowledgeFinished moves a finished engine to the data phase.
func (e *Engine) acknowledgeFinished() {
	e.mu.Lock()
	if e.status == Finished {
		e.status = NotHandshaking
	}
	e.mu.Unlock()
}

// EngineChannel adapts Engine to the Channel contract.
type EngineChannel struct {
	engine *Engine
}

// NewEngineChannel creates the engine-style Channel.
func NewEngineChannel(id *Identity) *EngineChannel {
	return &EngineChannel{engine: NewEngine(id)}
}

// Name identifies the engine in logs.
func (c *EngineChannel) Name() string {
	return "engine"
}

// Prepare begins a new handshake.
func (c *EngineChannel) Prepare() error {
	c.engine.BeginHandshake()
	return nil
}

func (c *EngineChannel) runTasks() {
	for task := c.engine.DelegatedTask(); task != nil; task = c.engine.DelegatedTask() {
		task()
	}
}

// HandshakeRead runs pending tasks and wraps the next flight.
func (c *EngineChannel) HandshakeRead() ([]byte, error) {
	c.runTasks()
	if err := c.engine.Err(); err != nil {
		return nil, err
	}
	var out []byte
	for c.engine.HandshakeStatus() == NeedWrap {
		var err error
		if _, out, err = c.engine.Wrap(nil, out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// HandshakeWrite unwraps one inbound flight and drains the resulting tasks.
func (c *EngineChannel) HandshakeWrite(data []byte) (int, error) {
	res, _, err := c.engine.Unwrap(data, nil)
	if err != nil {
		return 0, err
	}
	c.runTasks()
	return res.Consumed, c.engine.Err()
}

func (c *EngineChannel) handshakeComplete() bool {
	status := c.engine.HandshakeStatus()
	return (status == Finished || status == NotHandshaking) && c.engine.Err() == nil && c.engine.core.complete()
}

// PerformHandshake runs the two round trips over port.
func (c *EngineChannel) PerformHandshake(port transport.Port, timeout time.Duration) error {
	return performHandshake(c, c.Name(), port, timeout)
}

// ResetBuffers clears residual handshake bytes before the data phase.
func (c *EngineChannel) ResetBuffers() {
	c.engine.acknowledgeFinished()
	c.engine.core.reset()
}

// Encrypt wraps plaintext.
func (c *EngineChannel) Encrypt(plaintext []byte) ([]byte, error) {
	if c.engine.HandshakeStatus() != NotHandshaking {
		return nil, ErrNotEstablished
	}
	_, out, err := c.engine.Wrap(plaintext, nil)
	return out, err
}

// Decrypt unwraps ciphertext.
func (c *EngineChannel) Decrypt(ciphertext []byte) ([]byte, error) {
	if c.engine.HandshakeStatus() != NotHandshaking {
		return nil, ErrNotEstablished
	}
	res, out, err := c.engine.Unwrap(ciphertext, nil)
	if err != nil {
		return nil, err
	}
	if res.Status == StatusBufferUnderflow {
		return nil, ErrIncompleteRecord
	}
	return out, nil
}

// ConnectionState returns the negotiated TLS parameters.
func (c *EngineChannel) ConnectionState() tls.ConnectionState {
	return c.engine.core.state()
}

// Close stops the engine.
func (c *EngineChannel) Close() error {
	return c.engine.core.close()
}
