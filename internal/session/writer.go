package session

import (
	"fmt"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

// outbound is one queued message. done, when set, receives the write result.
type outbound struct {
	msg  *protocol.Message
	done chan error
}

// send queues msg without waiting for it to reach the transport.
func (s *Session) send(msg *protocol.Message) error {
	return s.enqueue(msg, nil)
}

// sendWait queues msg and waits until the writer has sent it.
func (s *Session) sendWait(msg *protocol.Message) error {
	done := make(chan error, 1)
	if err := s.enqueue(msg, done); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-s.ctx.Done():
		return ErrNotRunning
	}
}

func (s *Session) enqueue(msg *protocol.Message, done chan error) error {
	if !s.alive.Load() {
		return ErrNotRunning
	}
	select {
	case s.outbox <- outbound{msg: msg, done: done}:
		return nil
	case <-s.ctx.Done():
		return ErrNotRunning
	}
}

// writeLoop is the only goroutine writing to the port, so frames leave in
// the order they were queued.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case out := <-s.outbox:
			err := s.write(out.msg)
			if out.done != nil {
				out.done <- err
			}
			if err != nil {
				s.stats.sendErrors.Add(1)
				logging.Error("Send failed",
					zap.Stringer("channel", out.msg.Channel),
					zap.String("type", protocol.TypeName(out.msg.Channel, out.msg.Type)),
					zap.Error(err),
				)
				go s.quit(err)
				return
			}
		}
	}
}

func (s *Session) write(msg *protocol.Message) error {
	ciphertext, err := s.channel.Encrypt(msg.Body())
	if err != nil {
		return newFault(FaultCrypto, "encrypt", err)
	}
	frame, err := protocol.EncodeFrame(msg.Channel, msg.Flags, ciphertext)
	if err != nil {
		return newFault(FaultFraming, "encode", err)
	}
	n, err := s.port.SendBlocking(frame, s.settings.Transport.WriteTimeout)
	if err != nil {
		return newFault(FaultTransport, "send", err)
	}
	if n != len(frame) {
		return newFault(FaultTransport, "send", fmt.Errorf("short write: %d of %d bytes", n, len(frame)))
	}

	s.stats.framesOut.Add(1)
	s.stats.bytesOut.Add(uint64(n))
	logging.LogFrame("send", msg.Channel.String(), msg.Flags, msg.Type, len(msg.Payload))
	return nil
}
