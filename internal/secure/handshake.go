package secure

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/zap"
)

const (
	// HandshakeRounds is the number of phone-to-head-unit exchanges after the
	// version message.
	HandshakeRounds = 2

	// maxFlightMessages bounds how many frames one inbound flight may span.
	maxFlightMessages = 8
)

// handshaker is the part of a Channel the handshake loop drives.
type handshaker interface {
	Prepare() error
	HandshakeRead() ([]byte, error)
	HandshakeWrite(data []byte) (int, error)
	ConnectionState() tls.ConnectionState
	handshakeComplete() bool
}

func handshakeError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrHandshakeFailed, fmt.Sprintf(format, args...))
}

// performHandshake sends each outbound flight as a cleartext control frame
// and feeds the phone's replies back until the engine has output or is done.
func performHandshake(h handshaker, engine string, port transport.Port, timeout time.Duration) error {
	if err := h.Prepare(); err != nil {
		return handshakeError("prepare: %v", err)
	}

	out, err := h.HandshakeRead()
	if err != nil {
		return handshakeError("client hello: %v", err)
	}

	for round := 1; round <= HandshakeRounds; round++ {
		if len(out) == 0 {
			return handshakeError("round %d: engine produced no data", round)
		}
		if err := sendHandshake(port, out, timeout); err != nil {
			return handshakeError("round %d: send: %v", round, err)
		}
		logging.Debug("TLS flight sent",
			zap.String("engine", engine),
			zap.Int("round", round),
			zap.Int("bytes", len(out)),
		)

		out = nil
		for messages := 0; len(out) == 0 && !h.handshakeComplete(); messages++ {
			if messages == maxFlightMessages {
				return handshakeError("round %d: flight spans more than %d frames", round, maxFlightMessages)
			}
			payload, err := recvHandshake(port, timeout)
			if err != nil {
				return handshakeError("round %d: receive: %v", round, err)
			}
			if _, err := h.HandshakeWrite(payload); err != nil {
				return handshakeError("round %d: write: %v", round, err)
			}
			if out, err = h.HandshakeRead(); err != nil {
				return handshakeError("round %d: read: %v", round, err)
			}
		}
	}

	if !h.handshakeComplete() {
		return handshakeError("not complete after %d round trips", HandshakeRounds)
	}
	if len(out) > 0 {
		logging.Warn("Discarding TLS output produced after the handshake",
			zap.String("engine", engine),
			zap.Int("bytes", len(out)),
		)
	}

	state := h.ConnectionState()
	logging.LogTLSHandshake(engine, state.Version, state.CipherSuite)
	return nil
}

func sendHandshake(port transport.Port, data []byte, timeout time.Duration) error {
	frame, err := protocol.HandshakeMessage(data)
	if err != nil {
		return err
	}
	logging.LogFrame("send", protocol.ChannelControl.String(), protocol.FlagsBootstrap, protocol.MsgTLSHandshake, len(data))
	_, err = port.SendBlocking(frame, timeout)
	return err
}

// recvHandshake reads one cleartext handshake frame and returns its payload.
func recvHandshake(port transport.Port, timeout time.Duration) ([]byte, error) {
	var raw [protocol.HeaderSize]byte
	if _, err := port.RecvBlocking(raw[:], timeout, true); err != nil {
		return nil, err
	}
	header, err := protocol.DecodeHeader(raw[:])
	if err != nil {
		return nil, err
	}
	if header.Channel != protocol.ChannelControl || header.Type != protocol.MsgTLSHandshake {
		return nil, fmt.Errorf("unexpected %s on %s during handshake",
			protocol.TypeName(header.Channel, header.Type), header.Channel)
	}

	payload := make([]byte, header.PayloadLength())
	if len(payload) > 0 {
		if _, err := port.RecvBlocking(payload, timeout, true); err != nil {
			return nil, err
		}
	}
	logging.LogFrame("recv", header.Channel.String(), header.Flags, header.Type, len(payload))
	return payload, nil
}
