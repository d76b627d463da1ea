package secure

import (
	"crypto/tls"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

// SessionChannel drives the handshake as alternating reads and writes: ask
// for the next outbound flight, send it, feed the reply back in.
type SessionChannel struct {
	core tlsCore
}

// NewSessionChannel creates the session-style engine.
func NewSessionChannel(id *Identity) *SessionChannel {
	return &SessionChannel{core: tlsCore{id: id}}
}

// Name identifies the engine in logs.
func (s *SessionChannel) Name() string {
	return "session"
}

// Prepare starts a new TLS client. Its ClientHello is the first flight
// returned by HandshakeRead.
func (s *SessionChannel) Prepare() error {
	s.core.prepare()
	return s.core.start()
}

// HandshakeRead returns the bytes the TLS client produced since the last
// call, once it is waiting for input or done.
func (s *SessionChannel) HandshakeRead() ([]byte, error) {
	return s.core.step()
}

// HandshakeWrite hands one inbound flight (or part of it) to the client.
func (s *SessionChannel) HandshakeWrite(data []byte) (int, error) {
	if err := s.core.feed(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *SessionChannel) handshakeComplete() bool {
	return s.core.complete()
}

// PerformHandshake runs the two round trips over port.
func (s *SessionChannel) PerformHandshake(port transport.Port, timeout time.Duration) error {
	return performHandshake(s, s.Name(), port, timeout)
}

// ResetBuffers clears residual handshake bytes before the data phase.
func (s *SessionChannel) ResetBuffers() {
	s.core.reset()
}

// Encrypt seals plaintext into TLS records.
func (s *SessionChannel) Encrypt(plaintext []byte) ([]byte, error) {
	return s.core.encrypt(plaintext)
}

// Decrypt opens the TLS records in ciphertext.
func (s *SessionChannel) Decrypt(ciphertext []byte) ([]byte, error) {
	return s.core.decrypt(ciphertext)
}

// ConnectionState returns the negotiated TLS parameters.
func (s *SessionChannel) ConnectionState() tls.ConnectionState {
	return s.core.state()
}

// Close stops the client. The channel can be prepared again afterwards.
func (s *SessionChannel) Close() error {
	return s.core.close()
}
