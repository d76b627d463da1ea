package pipeline

import (
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/zap"
)

// SingleMessage reads one frame per cycle with exact reads: prefix, the
// total-size field of a first fragment, then the body. A short read skips
// the frame.
type SingleMessage struct {
	frameHandler

	headerTimeout   time.Duration
	fragmentTimeout time.Duration

	prefix [protocol.EncryptedHeaderSize]byte
	total  [protocol.TotalSizeFieldSize]byte
	body   []byte
}

func newSingleMessage(dec Decrypter, disp Dispatcher, o options) *SingleMessage {
	return &SingleMessage{
		frameHandler:    frameHandler{dec: dec, disp: disp},
		headerTimeout:   o.headerTimeout,
		fragmentTimeout: o.fragmentTimeout,
		body:            make([]byte, protocol.MaxFrameSize),
	}
}

// Name identifies the strategy in logs.
func (s *SingleMessage) Name() string {
	return "single-message"
}

// Stats returns a snapshot of the counters.
func (s *SingleMessage) Stats() Stats {
	return s.stats.snapshot()
}

// ReadCycle reads and dispatches one frame.
func (s *SingleMessage) ReadCycle(port transport.Port) Status {
	if status, ok := s.read(port, s.prefix[:], s.headerTimeout, "header"); !ok {
		return status
	}
	header, err := protocol.DecodeEncryptedHeader(s.prefix[:])
	if err == nil {
		err = protocol.ValidateHeader(header)
	}
	if err != nil {
		s.stats.dropped.Add(1)
		logging.Warn("Skipping frame with malformed header", zap.Error(err))
		return StatusContinue
	}

	if header.HasTotalSize() {
		if status, ok := s.read(port, s.total[:], s.fragmentTimeout, "total size"); !ok {
			return status
		}
	}

	body := s.body[:header.Length]
	if len(body) > 0 {
		if status, ok := s.read(port, body, s.fragmentTimeout, "body"); !ok {
			return status
		}
	}
	return s.handle(header, body)
}

// read fills buf exactly. ok is false when the cycle must end with status.
func (s *SingleMessage) read(port transport.Port, buf []byte, timeout time.Duration, part string) (Status, bool) {
	n, err := port.RecvBlocking(buf, timeout, true)
	if err == nil {
		return StatusContinue, true
	}
	if isDisconnect(err) {
		logging.Info("Transport closed", zap.String("remote_addr", port.RemoteAddr()), zap.Error(err))
		return StatusDisconnected, false
	}
	if transport.IsTimeout(err) && n == 0 && part == "header" {
		// Idle link.
		return StatusContinue, false
	}
	s.stats.shortReads.Add(1)
	if part != "header" {
		s.stats.dropped.Add(1)
	}
	logging.Warn("Short read, skipping frame",
		zap.String("part", part),
		zap.Int("read", n),
		zap.Int("wanted", len(buf)),
		zap.Error(err),
	)
	return StatusContinue, false
}
