package session

import (
	"errors"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/media"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

// ErrVideoStopped means the phone stopped projection while the session was
// allowed to quit.
var ErrVideoStopped = errors.New("video stream stopped")

// handleMedia serves the control opcodes of the video, audio, microphone and
// bluetooth channels.
func (s *Session) handleMedia(msg *protocol.Message) int {
	switch msg.Type {
	case protocol.MsgMediaSetup:
		codec, err := protocol.ParseMediaSetup(msg.Payload)
		if err != nil {
			logParseError(msg, err)
		}
		s.codecs[msg.Channel] = codec
		logging.Info("Media setup", zap.Stringer("channel", msg.Channel), zap.Stringer("codec", codec))
		s.reply(msg.Channel, protocol.MsgMediaConfigResponse, protocol.MediaConfigResponse())
		if msg.Channel == protocol.ChannelVideo {
			s.reply(protocol.ChannelVideo, protocol.MsgVideoFocusNotification,
				protocol.VideoFocusNotification(protocol.VideoFocusProjected, true))
			s.listener.VideoFocus(true)
		}

	case protocol.MsgMediaStart:
		start, err := protocol.ParseMediaStart(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		s.sessionIDs[msg.Channel] = start.SessionID
		logging.Debug("Media start", zap.Stringer("channel", msg.Channel), zap.Int32("session_id", start.SessionID))
		if msg.Channel.IsAudio() {
			s.startAudio(msg.Channel)
		}

	case protocol.MsgMediaStop:
		return s.handleMediaStop(msg.Channel)

	case protocol.MsgMediaAck:
		logging.Debug("Media ack", zap.Stringer("channel", msg.Channel))

	case protocol.MsgMicrophoneRequest:
		req, err := protocol.ParseMicrophoneRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		s.handleMicrophone(req)

	case protocol.MsgVideoFocusRequest:
		req, err := protocol.ParseVideoFocusRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		if req.NativeTakeover() {
			logging.Info("Phone handed video focus back to the head unit", zap.Int32("reason", req.Reason))
			s.listener.VideoFocus(false)
			return s.terminateBecause(ErrNativeTakeover)
		}
		s.reply(protocol.ChannelVideo, protocol.MsgVideoFocusNotification,
			protocol.VideoFocusNotification(protocol.VideoFocusProjected, false))
		s.listener.VideoFocus(true)

	default:
		logging.Warn("Unhandled media message",
			zap.Stringer("channel", msg.Channel),
			zap.String("type", protocol.TypeName(msg.Channel, msg.Type)),
		)
	}
	return handled
}

func (s *Session) startAudio(ch protocol.Channel) {
	role, _ := protocol.RoleForChannel(ch)
	format := audioFormat(ch)
	stream := media.AudioStream{
		Channel:      ch,
		Role:         role,
		SampleRate:   int(format.SampleRate),
		BitDepth:     int(format.BitDepth),
		ChannelCount: int(format.Channels),
		AAC:          s.codecs[ch] == protocol.CodecAACLC,
		Gain:         s.gainFor(ch),
	}
	if err := s.audio.StartAudio(stream); err != nil {
		logging.Error("Audio start failed", zap.Stringer("channel", ch), zap.Error(err))
		return
	}
	s.audioStarted[ch] = true
}

func (s *Session) gainFor(ch protocol.Channel) float64 {
	switch ch {
	case protocol.ChannelMediaAudio:
		return s.settings.Audio.MediaGain
	case protocol.ChannelSpeechAudio:
		return s.settings.Audio.SpeechGain
	default:
		return s.settings.Audio.SystemGain
	}
}

func (s *Session) handleMediaStop(ch protocol.Channel) int {
	if ch.IsAudio() {
		if s.audioStarted[ch] {
			delete(s.audioStarted, ch)
			if err := s.audio.StopAudio(ch); err != nil {
				logging.Warn("Audio stop failed", zap.Stringer("channel", ch), zap.Error(err))
			}
		}
		return handled
	}
	if ch != protocol.ChannelVideo {
		return handled
	}

	s.reassembler.reset()
	switch {
	case s.ignoreNextStop.Swap(false):
		logging.Debug("Ignoring video stop caused by a keyframe request")
		return handled
	case !s.quittingAllowed.Load():
		logging.Info("Video stopped while backgrounded")
		s.listener.VideoFocus(false)
		return handled
	default:
		logging.Info("Video stopped by the phone")
		s.listener.VideoFocus(false)
		return s.terminateBecause(ErrVideoStopped)
	}
}

func (s *Session) handleAudioData(msg *protocol.Message) {
	data, err := protocol.MediaData(msg.Type, msg.Payload)
	if err != nil {
		logParseError(msg, err)
		return
	}
	if err := s.audio.DecodeAudio(s.ctx, msg.Channel, data); err != nil {
		logging.Debug("Audio chunk not played", zap.Stringer("channel", msg.Channel), zap.Error(err))
		return
	}
	s.stats.audioChunks.Add(1)
}

func (s *Session) handleVideoData(msg *protocol.Message) {
	data := msg.Payload
	if !msg.IsContinuation() {
		var err error
		if data, err = protocol.MediaData(msg.Type, msg.Payload); err != nil {
			logParseError(msg, err)
			s.reassembler.reset()
			s.stats.videoDropped.Add(1)
			return
		}
	}

	frame, ok := s.reassembler.push(msg.Flags, data)
	if !ok {
		return
	}
	hint := media.VideoHint{ForceSoftware: s.settings.Video.ForceSoftware, Codec: s.settings.Video.Codec}
	if err := s.video.DecodeVideo(frame, hint); err != nil {
		logging.Warn("Video frame not decoded", zap.Int("length", len(frame)), zap.Error(err))
		s.stats.videoDropped.Add(1)
		return
	}
	s.stats.videoFrames.Add(1)
}

func (s *Session) handleMicrophone(req protocol.MicrophoneRequest) {
	if !req.Open {
		if s.micOpen && s.mic != nil {
			if err := s.mic.Stop(); err != nil {
				logging.Warn("Microphone stop failed", zap.Error(err))
			}
		}
		s.micOpen = false
		logging.Info("Microphone closed")
		return
	}

	status := protocol.StatusOK
	if s.mic == nil {
		status = -1
	} else if !s.micOpen {
		if err := s.mic.Start(s.settings.Microphone.SampleRate, s.deliverMicrophone); err != nil {
			logging.Error("Microphone start failed", zap.Error(err))
			status = -1
		} else {
			s.micOpen = true
		}
	}
	logging.Info("Microphone opened", zap.Bool("capturing", s.micOpen))
	s.reply(protocol.ChannelMicrophone, protocol.MsgMicrophoneResponse,
		protocol.MicrophoneResponse(status, s.sessionIDs[protocol.ChannelMicrophone]))
}

// deliverMicrophone runs on the capture goroutine.
func (s *Session) deliverMicrophone(pcm []byte) {
	ts := uint64(time.Now().UnixMicro())
	msg := &protocol.Message{
		Channel: protocol.ChannelMicrophone,
		Flags:   protocol.FlagsSingle,
		Type:    protocol.MsgMediaDataTimestamped,
		Payload: protocol.TimestampedMediaData(ts, pcm),
	}
	if err := s.send(msg); err != nil {
		return
	}
	s.stats.micChunks.Add(1)
}
