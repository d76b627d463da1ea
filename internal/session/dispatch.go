package session

import (
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

// Handler results. A negative value ends the session.
const (
	handled   = 0
	terminate = -1
)

// dispatch routes one inbound message. It runs on the read goroutine only.
func (s *Session) dispatch(msg *protocol.Message) int {
	switch {
	case msg.Channel == protocol.ChannelVideo && (msg.IsContinuation() || protocol.IsMediaData(msg.Type)):
		s.ackMedia(msg.Channel)
		s.handleVideoData(msg)
		return handled

	case msg.Channel.IsAudio() && !msg.IsContinuation() && protocol.IsMediaData(msg.Type):
		s.ackMedia(msg.Channel)
		s.handleAudioData(msg)
		return handled

	case msg.Channel == protocol.ChannelPlayback && msg.Type > 31:
		s.handlePlayback(msg)
		return handled

	case !msg.IsContinuation() && protocol.IsControlType(msg.Type):
		if msg.Type == protocol.MsgChannelOpenRequest {
			return s.handleChannelOpen(msg)
		}
		switch msg.Channel {
		case protocol.ChannelControl:
			return s.handleControl(msg)
		case protocol.ChannelInput:
			return s.handleInput(msg)
		case protocol.ChannelSensor:
			return s.handleSensor(msg)
		default:
			return s.handleMedia(msg)
		}
	}

	s.stats.unknownDropped.Add(1)
	logging.Warn("Dropping unroutable message",
		zap.Stringer("channel", msg.Channel),
		zap.Uint8("flags", msg.Flags),
		zap.Uint16("type", msg.Type),
		zap.Int("length", len(msg.Payload)),
	)
	return handled
}

// terminateBecause records why the session ends and returns terminate.
func (s *Session) terminateBecause(reason error) int {
	s.terminateWith = reason
	return terminate
}

func (s *Session) reply(ch protocol.Channel, msgType uint16, payload []byte) {
	if err := s.send(protocol.NewMessage(ch, msgType, payload)); err != nil {
		logging.Debug("Reply not sent",
			zap.Stringer("channel", ch),
			zap.String("type", protocol.TypeName(ch, msgType)),
			zap.Error(err),
		)
	}
}

func (s *Session) ackMedia(ch protocol.Channel) {
	s.reply(ch, protocol.MsgMediaAck, protocol.MediaAck(s.sessionIDs[ch]))
}

func logParseError(msg *protocol.Message, err error) {
	logging.Warn("Malformed payload",
		zap.Stringer("channel", msg.Channel),
		zap.String("type", protocol.TypeName(msg.Channel, msg.Type)),
		zap.Error(err),
	)
}

func (s *Session) handleChannelOpen(msg *protocol.Message) int {
	req, err := protocol.ParseChannelOpenRequest(msg.Payload)
	if err != nil {
		logParseError(msg, err)
	}
	logging.Debug("Channel open", zap.Stringer("channel", msg.Channel), zap.Int32("priority", req.Priority))

	s.reply(msg.Channel, protocol.MsgChannelOpenResponse, protocol.StatusResponse(protocol.StatusOK))
	if msg.Channel == protocol.ChannelSensor {
		// The phone expects a driving status before it starts any sensor.
		s.pushSensor(protocol.DrivingStatusEvent(protocol.DrivingStatusUnrestricted))
	}
	return handled
}

func (s *Session) handleControl(msg *protocol.Message) int {
	switch msg.Type {
	case protocol.MsgServiceDiscoveryRequest:
		req, err := protocol.ParseServiceDiscoveryRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
		}
		logging.Info("Service discovery", zap.String("device_name", req.DeviceName), zap.String("device_brand", req.Brand))
		s.reply(protocol.ChannelControl, protocol.MsgServiceDiscoveryResponse, s.manifest.Marshal())

	case protocol.MsgPingRequest:
		ts, err := protocol.ParsePingRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		s.reply(protocol.ChannelControl, protocol.MsgPingResponse, protocol.PingResponse(ts))

	case protocol.MsgPingResponse:
		logging.Debug("Ping response")

	case protocol.MsgNavFocusRequest:
		s.reply(protocol.ChannelControl, protocol.MsgNavFocusNotification, protocol.NavFocusNotification(protocol.NavFocusGranted))

	case protocol.MsgByeByeRequest:
		reason, _ := protocol.ParseByeByeRequest(msg.Payload)
		logging.Info("Phone requested bye-bye", zap.Int32("reason", reason))
		if err := s.sendWait(protocol.NewMessage(protocol.ChannelControl, protocol.MsgByeByeResponse, protocol.ByeByeResponse())); err != nil {
			logging.Warn("Bye-bye response not sent", zap.Error(err))
		}
		s.sleep(s.byeByeDelay)
		return s.terminateBecause(ErrByeBye)

	case protocol.MsgByeByeResponse:
		logging.Info("Phone acknowledged bye-bye")
		return s.terminateBecause(ErrByeBye)

	case protocol.MsgAudioFocusRequest:
		req, err := protocol.ParseAudioFocusRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		s.arbitrateFocus(req)

	case protocol.MsgVoiceSessionRequest:
		state, err := protocol.ParseVoiceSessionRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		s.listener.VoiceSession(state == protocol.VoiceSessionStart)

	default:
		logging.Warn("Unhandled control message", zap.String("type", protocol.TypeName(msg.Channel, msg.Type)))
	}
	return handled
}

// arbitrateFocus asks the focus arbiter off the read path and reports the
// outcome. A denial is reported as a loss.
func (s *Session) arbitrateFocus(req protocol.AudioFocusRequestType) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		state := protocol.AudioFocusStateLoss
		if s.focus.RequestFocus(s.ctx, req) {
			state = protocol.FocusOutcome(req)
		}
		logging.Debug("Audio focus", zap.Stringer("request", req), zap.Int32("state", int32(state)))
		s.reply(protocol.ChannelControl, protocol.MsgAudioFocusNotification, protocol.AudioFocusNotification(state, false))
	}()
}

func (s *Session) handlePlayback(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgPlaybackStatus:
		status, err := protocol.ParsePlaybackStatus(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return
		}
		s.listener.PlaybackStatus(status)
	case protocol.MsgPlaybackMetadata:
		meta, err := protocol.ParsePlaybackMetadata(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return
		}
		s.listener.PlaybackMetadata(meta)
	default:
		logging.Debug("Unhandled playback message", zap.String("type", protocol.TypeName(msg.Channel, msg.Type)))
	}
}

// sleep waits for d or until the session is cancelled.
func (s *Session) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
	}
}
