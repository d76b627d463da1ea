package pipeline

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/secure"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/zap"
)

// Status is the result of one read cycle. Negative values end the loop.
type Status int

const (
	// StatusContinue asks for another read cycle
	StatusContinue Status = 0
	// StatusDisconnected means the transport reached end of stream
	StatusDisconnected Status = -1
	// StatusTerminated means a handler asked for the session to end
	StatusTerminated Status = -2
	// StatusBroken means the secure channel can no longer decrypt
	StatusBroken Status = -3
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusDisconnected:
		return "disconnected"
	case StatusTerminated:
		return "terminated"
	case StatusBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Decrypter opens one encrypted frame body.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Dispatcher handles one decoded message. A negative return code ends the
// session.
type Dispatcher interface {
	Dispatch(msg *protocol.Message) int
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(msg *protocol.Message) int

// Dispatch calls f(msg).
func (f DispatchFunc) Dispatch(msg *protocol.Message) int {
	return f(msg)
}

// Strategy turns transport reads into dispatched messages.
type Strategy interface {
	// ReadCycle performs one bounded physical read and dispatches every
	// complete frame it produced.
	ReadCycle(port transport.Port) Status
	// Stats returns a snapshot of the counters.
	Stats() Stats
	Name() string
}

// New builds the strategy that fits the port: single-message for ports that
// deliver whole frames, streaming for byte streams.
func New(kind transport.Kind, dec Decrypter, disp Dispatcher, opts ...Option) Strategy {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if kind == transport.KindMessage {
		return newSingleMessage(dec, disp, o)
	}
	return newStreaming(dec, disp, o)
}

// Run calls strategy.ReadCycle until ctx is done or a cycle returns a
// negative status, which is returned.
func Run(ctx context.Context, port transport.Port, strategy Strategy) Status {
	logging.Debug("Read loop started", zap.String("strategy", strategy.Name()))
	for {
		select {
		case <-ctx.Done():
			logging.Debug("Read loop stopped", zap.String("strategy", strategy.Name()))
			return StatusContinue
		default:
		}

		if status := strategy.ReadCycle(port); status < 0 {
			logging.Debug("Read loop ended",
				zap.String("strategy", strategy.Name()),
				zap.Stringer("status", status),
			)
			return status
		}
	}
}

// Stats counts what the pipeline did.
type Stats struct {
	Frames     uint64 // frames dispatched
	Bytes      uint64 // body bytes received
	Dropped    uint64 // frames skipped after read or decrypt failures
	Resets     uint64 // buffer resets
	LostBytes  uint64 // bytes discarded by resets
	ShortReads uint64
}

type counters struct {
	frames     atomic.Uint64
	bytes      atomic.Uint64
	dropped    atomic.Uint64
	resets     atomic.Uint64
	lostBytes  atomic.Uint64
	shortReads atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:     c.frames.Load(),
		Bytes:      c.bytes.Load(),
		Dropped:    c.dropped.Load(),
		Resets:     c.resets.Load(),
		LostBytes:  c.lostBytes.Load(),
		ShortReads: c.shortReads.Load(),
	}
}

// frameHandler decrypts and dispatches complete frames for both strategies.
type frameHandler struct {
	dec   Decrypter
	disp  Dispatcher
	stats counters
}

// handle processes one frame body. body may be reused by the caller after
// handle returns.
func (h *frameHandler) handle(header protocol.EncryptedHeader, body []byte) Status {
	h.stats.bytes.Add(uint64(len(body)))

	var plaintext []byte
	if header.Encrypted() {
		var err error
		plaintext, err = h.dec.Decrypt(body)
		if errors.Is(err, secure.ErrChannelBroken) {
			h.stats.dropped.Add(1)
			logging.Error("Secure channel broken",
				zap.Stringer("channel", header.Channel),
				zap.Int("length", header.Length),
				zap.Error(err),
			)
			return StatusBroken
		}
		if err != nil {
			h.stats.dropped.Add(1)
			logging.Warn("Dropping frame that failed to decrypt",
				zap.Stringer("channel", header.Channel),
				zap.Uint8("flags", header.Flags),
				zap.Int("length", header.Length),
				zap.Error(err),
			)
			return StatusContinue
		}
	} else {
		plaintext = append([]byte(nil), body...)
	}

	msg, err := protocol.ParseMessage(header.Channel, header.Flags, plaintext)
	if err != nil {
		h.stats.dropped.Add(1)
		logging.Warn("Dropping malformed message",
			zap.Stringer("channel", header.Channel),
			zap.Error(err),
		)
		return StatusContinue
	}

	if logging.DebugEnabled() {
		logging.LogFrame("recv", msg.Channel.String(), msg.Flags, msg.Type, msg.Len())
	}
	h.stats.frames.Add(1)
	if h.disp.Dispatch(msg) < 0 {
		return StatusTerminated
	}
	return StatusContinue
}

// isDisconnect reports whether a read error means the port is gone.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, transport.ErrNotConnected) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
