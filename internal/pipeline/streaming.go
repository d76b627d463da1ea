package pipeline

import (
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/zap"
)

// Streaming reads whatever the port has into a FIFO and dispatches every
// complete frame in it. A trailing partial frame waits for the next cycle.
type Streaming struct {
	frameHandler

	fifo        *fifo
	chunk       []byte
	pollTimeout time.Duration
}

func newStreaming(dec Decrypter, disp Dispatcher, o options) *Streaming {
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.bufferSize < o.chunkSize {
		o.bufferSize = o.chunkSize
	}
	return &Streaming{
		frameHandler: frameHandler{dec: dec, disp: disp},
		fifo:         newFIFO(o.bufferSize),
		chunk:        make([]byte, o.chunkSize),
		pollTimeout:  o.pollTimeout,
	}
}

// Name identifies the strategy in logs.
func (s *Streaming) Name() string {
	return "streaming"
}

// Stats returns a snapshot of the counters.
func (s *Streaming) Stats() Stats {
	return s.stats.snapshot()
}

// Buffered is the number of bytes waiting for the rest of their frame.
func (s *Streaming) Buffered() int {
	return s.fifo.Len()
}

// ReadCycle performs one physical read and drains the FIFO.
func (s *Streaming) ReadCycle(port transport.Port) Status {
	n, err := port.RecvBlocking(s.chunk, s.pollTimeout, false)
	if n > 0 {
		if status := s.Feed(s.chunk[:n]); status < 0 {
			return status
		}
	}
	switch {
	case err == nil:
		return StatusContinue
	case isDisconnect(err):
		logging.Info("Transport closed", zap.String("remote_addr", port.RemoteAddr()), zap.Error(err))
		return StatusDisconnected
	case transport.IsTimeout(err):
		return StatusContinue
	default:
		s.stats.shortReads.Add(1)
		logging.Warn("Read failed", zap.String("remote_addr", port.RemoteAddr()), zap.Error(err))
		return StatusContinue
	}
}

// Feed appends a chunk and dispatches every complete frame. A chunk that
// does not fit resets the FIFO first.
func (s *Streaming) Feed(chunk []byte) Status {
	if !s.fifo.Write(chunk) {
		s.reset("overflow")
		if !s.fifo.Write(chunk) {
			lost := len(chunk)
			s.stats.lostBytes.Add(uint64(lost))
			logging.Warn("Dropping chunk larger than the read buffer", zap.Int("bytes", lost))
			return StatusContinue
		}
	}
	return s.drain()
}

func (s *Streaming) drain() Status {
	for s.fifo.Len() >= protocol.EncryptedHeaderSize {
		s.fifo.Mark()

		header, err := protocol.DecodeEncryptedHeader(s.fifo.Peek(protocol.EncryptedHeaderSize))
		if err == nil {
			err = protocol.ValidateHeader(header)
		}
		if err != nil {
			logging.Warn("Malformed frame header", zap.Error(err))
			s.reset("malformed length")
			return StatusContinue
		}

		if s.fifo.Len() < header.Size()+header.Length {
			s.fifo.ResetToMark()
			break
		}
		s.fifo.Skip(header.Size())
		body := s.fifo.Peek(header.Length)
		s.fifo.Skip(header.Length)

		if status := s.handle(header, body); status < 0 {
			return status
		}
	}
	return StatusContinue
}

func (s *Streaming) reset(reason string) {
	lost := s.fifo.Clear()
	s.stats.resets.Add(1)
	s.stats.lostBytes.Add(uint64(lost))
	logging.Warn("Read buffer reset",
		zap.String("reason", reason),
		zap.Int("lost_bytes", lost),
	)
}
