package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

var errEmptyVersionReply = errors.New("empty version reply")

// exchangeVersion sends the version request until the phone answers or the
// configured attempts run out.
func (s *Session) exchangeVersion(ctx context.Context) error {
	attempts := s.settings.Transport.VersionAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := s.settings.Transport.HandshakeTimeout

	var reply protocol.VersionResponse
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		logging.LogFrame("send", protocol.ChannelControl.String(), protocol.FlagsBootstrap, protocol.MsgVersionRequest, 4)
		if _, err := s.port.SendBlocking(protocol.VersionRequest(), timeout); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		reply, err = s.readVersionReply(timeout)
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Warn("Version exchange attempt failed, retrying",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.versionRetryDelay), uint64(attempts-1))
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var fault *Fault
		if errors.As(err, &fault) {
			return err
		}
		return newFault(FaultTransport, "version exchange", err)
	}

	if !reply.Matched() {
		logging.Warn("Phone reported a version mismatch",
			zap.Uint16("major", reply.Major),
			zap.Uint16("minor", reply.Minor),
			zap.Uint16("status", reply.Status),
		)
	} else {
		logging.Info("Version exchange complete",
			zap.Uint16("major", reply.Major),
			zap.Uint16("minor", reply.Minor),
		)
	}
	return nil
}

// readVersionReply reads one cleartext frame. Any non-empty reply counts as
// an answer; only a proper version response is decoded.
func (s *Session) readVersionReply(timeout time.Duration) (protocol.VersionResponse, error) {
	var raw [protocol.HeaderSize]byte
	if _, err := s.port.RecvBlocking(raw[:], timeout, true); err != nil {
		return protocol.VersionResponse{}, err
	}
	header, err := protocol.DecodeHeader(raw[:])
	if err != nil {
		return protocol.VersionResponse{}, backoff.Permanent(newFault(FaultFraming, "version reply", err))
	}
	if header.PayloadLength() < 0 {
		return protocol.VersionResponse{}, backoff.Permanent(newFault(FaultFraming, "version reply",
			fmt.Errorf("length field %d is shorter than the type", header.Length)))
	}

	payload := make([]byte, header.PayloadLength())
	if len(payload) > 0 {
		if _, err := s.port.RecvBlocking(payload, timeout, true); err != nil {
			return protocol.VersionResponse{}, err
		}
	}
	logging.LogFrame("recv", header.Channel.String(), header.Flags, header.Type, len(payload))

	if header.Type != protocol.MsgVersionResponse {
		if len(payload) == 0 {
			return protocol.VersionResponse{}, errEmptyVersionReply
		}
		logging.Warn("Unexpected version reply type", zap.String("type", protocol.TypeName(header.Channel, header.Type)))
		return protocol.VersionResponse{}, nil
	}
	reply, err := protocol.ParseVersionResponse(payload)
	if err != nil {
		return protocol.VersionResponse{}, errEmptyVersionReply
	}
	return reply, nil
}
