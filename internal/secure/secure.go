package secure

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

var (
	// ErrHandshakeFailed wraps every failure of PerformHandshake
	ErrHandshakeFailed = errors.New("secure: handshake failed")
	// ErrNotEstablished is returned by Encrypt/Decrypt before the handshake completed
	ErrNotEstablished = errors.New("secure: channel not established")
	// ErrIncompleteRecord is returned when Decrypt got no full record
	ErrIncompleteRecord = errors.New("secure: incomplete record")
	// ErrMalformedRecord is returned for a body that is not TLS 1.2 data
	ErrMalformedRecord = errors.New("secure: malformed record")
	// ErrChannelBroken is returned once a record failed authentication or
	// the peer sent an alert. crypto/tls keeps that error for both
	// directions, so the channel cannot be used again.
	ErrChannelBroken = errors.New("secure: channel broken")
)

// Channel is the encryption layer wrapped around the frame codec.
//
// The handshake is always two round trips after the version exchange. Once
// PerformHandshake returned, ResetBuffers must be called before the first
// Encrypt or Decrypt. Encrypt and Decrypt may run concurrently with each
// other but each is single-shot: one buffer in, one buffer out. A body
// Decrypt rejects as incomplete or malformed leaves no state behind; once
// ErrChannelBroken is returned every later call fails with it.
type Channel interface {
	// Prepare starts a fresh TLS client. It never resumes a previous session.
	Prepare() error
	// HandshakeRead returns the next outbound handshake flight, or nil when
	// the engine waits for input or is done.
	HandshakeRead() ([]byte, error)
	// HandshakeWrite feeds one inbound handshake payload.
	HandshakeWrite(data []byte) (int, error)
	// PerformHandshake drives Prepare/HandshakeRead/HandshakeWrite over port.
	PerformHandshake(port transport.Port, timeout time.Duration) error
	// ResetBuffers clears residual handshake bytes.
	ResetBuffers()
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	ConnectionState() tls.ConnectionState
	Name() string
	Close() error
}

// New returns the engine selected by name (config.EngineSession or
// config.EngineEngine).
func New(name string, id *Identity) (Channel, error) {
	if id == nil {
		return nil, errors.New("secure: identity is required")
	}
	switch name {
	case config.EngineSession, "":
		return NewSessionChannel(id), nil
	case config.EngineEngine:
		return NewEngineChannel(id), nil
	default:
		return nil, fmt.Errorf("secure: unknown engine %q", name)
	}
}

// clientConfig builds the head unit TLS client configuration.
func clientConfig(id *Identity) *tls.Config {
	cert := id.Certificate
	return &tls.Config{
		// Phones speak TLS 1.2; pinning it keeps the handshake at two round trips
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,

		// Phones present self-signed certificates
		InsecureSkipVerify: true, //nolint:gosec

		// Every connection performs a full handshake
		SessionTicketsDisabled: true,
		ClientSessionCache:     nil,
		Renegotiation:          tls.RenegotiateNever,

		// One record per message up to 16 KiB
		DynamicRecordSizingDisabled: true,

		// Always present the head unit certificate, whatever CAs the phone lists
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return &cert, nil
		},
	}
}
