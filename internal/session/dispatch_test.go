package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tsabaia/headunit-revived-sub000/internal/media"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
)

type videoRecorder struct {
	mu     sync.Mutex
	frames [][]byte
	hints  []media.VideoHint
}

func (v *videoRecorder) DecodeVideo(frame []byte, hint media.VideoHint) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = append(v.frames, append([]byte(nil), frame...))
	v.hints = append(v.hints, hint)
	return nil
}

func (v *videoRecorder) snapshot() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][]byte(nil), v.frames...)
}

type audioRecorder struct {
	mu      sync.Mutex
	streams []media.AudioStream
	chunks  map[protocol.Channel][][]byte
	stopped []protocol.Channel
}

func newAudioRecorder() *audioRecorder {
	return &audioRecorder{chunks: make(map[protocol.Channel][][]byte)}
}

func (a *audioRecorder) StartAudio(stream media.AudioStream) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.streams = append(a.streams, stream)
	return nil
}

func (a *audioRecorder) DecodeAudio(_ context.Context, ch protocol.Channel, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks[ch] = append(a.chunks[ch], append([]byte(nil), data...))
	return nil
}

func (a *audioRecorder) StopAudio(ch protocol.Channel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = append(a.stopped, ch)
	return nil
}

type denyFocus struct{}

func (denyFocus) RequestFocus(context.Context, protocol.AudioFocusRequestType) bool { return false }

func mediaStart(sessionID int32) []byte {
	return protocol.NewBuilder().Int(1, int64(sessionID)).Int(2, 0).Encode()
}

func TestServiceDiscovery(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelControl, protocol.MsgServiceDiscoveryRequest,
		protocol.NewBuilder().String(4, "Pixel").String(5, "Google").Encode())
	msg := h.expect(protocol.ChannelControl, protocol.MsgServiceDiscoveryResponse)
	assert.Equal(t, h.session.Manifest().Marshal(), msg.Payload)
	assert.Equal(t, protocol.FlagsSingle, msg.Flags)
}

func TestPing(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelControl, protocol.MsgPingRequest, protocol.NewBuilder().Int(1, 123456789).Encode())
	msg := h.expect(protocol.ChannelControl, protocol.MsgPingResponse)
	assert.Equal(t, protocol.PingResponse(123456789), msg.Payload)
}

func TestNavFocus(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelControl, protocol.MsgNavFocusRequest, protocol.NewBuilder().Int(1, 1).Encode())
	msg := h.expect(protocol.ChannelControl, protocol.MsgNavFocusNotification)
	assert.Equal(t, protocol.NavFocusNotification(protocol.NavFocusGranted), msg.Payload)
}

func TestAudioFocus(t *testing.T) {
	tests := []struct {
		name  string
		focus media.FocusArbiter
		req   protocol.AudioFocusRequestType
		want  protocol.AudioFocusState
	}{
		{name: "gain granted", focus: media.AlwaysGrant{}, req: protocol.AudioFocusGain, want: protocol.AudioFocusStateGain},
		{name: "navigation granted", focus: media.AlwaysGrant{}, req: protocol.AudioFocusGainNavi, want: protocol.AudioFocusStateGainGuidanceOnly},
		{name: "release", focus: media.AlwaysGrant{}, req: protocol.AudioFocusRelease, want: protocol.AudioFocusStateLoss},
		{name: "denied", focus: denyFocus{}, req: protocol.AudioFocusGain, want: protocol.AudioFocusStateLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startSession(t, func(cfg *Config) { cfg.Focus = tt.focus })

			h.send(protocol.ChannelControl, protocol.MsgAudioFocusRequest, protocol.NewBuilder().Int(1, int64(tt.req)).Encode())
			msg := h.expect(protocol.ChannelControl, protocol.MsgAudioFocusNotification)
			assert.Equal(t, protocol.AudioFocusNotification(tt.want, false), msg.Payload)
		})
	}
}

func TestVoiceSession(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelControl, protocol.MsgVoiceSessionRequest, protocol.NewBuilder().Int(1, int64(protocol.VoiceSessionStart)).Encode())
	h.send(protocol.ChannelControl, protocol.MsgVoiceSessionRequest, protocol.NewBuilder().Int(1, int64(protocol.VoiceSessionEnd)).Encode())

	assert.Eventually(t, func() bool {
		h.listener.mu.Lock()
		defer h.listener.mu.Unlock()
		return len(h.listener.voice) == 2
	}, testTimeout, 10*time.Millisecond)
	h.listener.mu.Lock()
	assert.Equal(t, []bool{true, false}, h.listener.voice)
	h.listener.mu.Unlock()
}

func TestChannelOpenSensor(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelSensor, protocol.MsgChannelOpenRequest, protocol.NewBuilder().Int(1, 0).Int(2, int64(protocol.ChannelSensor)).Encode())
	msg := h.expect(protocol.ChannelSensor, protocol.MsgChannelOpenResponse)
	assert.Equal(t, protocol.FlagsControlOnly, msg.Flags)
	assert.Equal(t, protocol.StatusResponse(protocol.StatusOK), msg.Payload)

	event := h.expect(protocol.ChannelSensor, protocol.MsgSensorEvent)
	assert.Equal(t, protocol.DrivingStatusEvent(protocol.DrivingStatusUnrestricted).Payload, event.Payload)
}

func TestChannelOpenMedia(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelVideo, protocol.MsgChannelOpenRequest, protocol.NewBuilder().Int(1, 0).Int(2, int64(protocol.ChannelVideo)).Encode())
	msg := h.expect(protocol.ChannelVideo, protocol.MsgChannelOpenResponse)
	assert.Equal(t, protocol.StatusResponse(protocol.StatusOK), msg.Payload)
	h.expectNone(protocol.ChannelSensor, protocol.MsgSensorEvent, 100*time.Millisecond)
}

func TestSensorGating(t *testing.T) {
	h := startSession(t, nil)

	assert.False(t, h.session.SendNightMode(true), "night sensor not started")
	assert.False(t, h.session.SendLocation(protocol.Location{Latitude: 1, Longitude: 2}))
	h.expectNone(protocol.ChannelSensor, protocol.MsgSensorEvent, 100*time.Millisecond)

	h.send(protocol.ChannelSensor, protocol.MsgSensorStartRequest,
		protocol.NewBuilder().Int(1, int64(protocol.SensorNight)).Int(2, 1000).Encode())
	resp := h.expect(protocol.ChannelSensor, protocol.MsgSensorStartResponse)
	assert.Equal(t, protocol.StatusResponse(protocol.StatusOK), resp.Payload)
	assert.True(t, h.session.SensorStarted(protocol.SensorNight))

	initial := h.expect(protocol.ChannelSensor, protocol.MsgSensorEvent)
	assert.Equal(t, protocol.NightModeEvent(true).Payload, initial.Payload, "the last local state is reported")
	h.listener.mu.Lock()
	assert.Equal(t, 1, h.listener.recomputes)
	h.listener.mu.Unlock()

	assert.True(t, h.session.SendNightMode(false))
	event := h.expect(protocol.ChannelSensor, protocol.MsgSensorEvent)
	assert.Equal(t, protocol.NightModeEvent(false).Payload, event.Payload)

	assert.False(t, h.session.SendLocation(protocol.Location{}), "location still not started")
}

func TestKeyBinding(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelInput, protocol.MsgKeyBindingRequest, protocol.NewBuilder().Uint(1, 3).Uint(1, 4).Encode())
	msg := h.expect(protocol.ChannelInput, protocol.MsgKeyBindingResponse)
	assert.Equal(t, protocol.StatusResponse(protocol.StatusOK), msg.Payload)
}

func inputFields(t *testing.T, msg *protocol.Message, field protowire.Number) protocol.Fields {
	t.Helper()
	fields, err := protocol.ParseFields(msg.Payload)
	require.NoError(t, err)
	inner, err := fields.Message(field)
	require.NoError(t, err)
	return inner
}

func TestSendKey(t *testing.T) {
	h := startSession(t, func(cfg *Config) {
		cfg.Settings.Input.KeyMap = map[int]int{300: protocol.KeycodeDpadUp}
	})

	require.NoError(t, h.session.SendKey(300, true))
	msg := h.expect(protocol.ChannelInput, protocol.MsgInputReport)
	keys := inputFields(t, msg, 4)
	key, err := keys.Message(1)
	require.NoError(t, err)
	assert.Equal(t, int32(protocol.KeycodeDpadUp), key.Int32(1))
	assert.True(t, key.Bool(2))

	require.NoError(t, h.session.SendKey(protocol.KeycodeHome, false))
	msg = h.expect(protocol.ChannelInput, protocol.MsgInputReport)
	key, err = inputFields(t, msg, 4).Message(1)
	require.NoError(t, err)
	assert.Equal(t, int32(protocol.KeycodeHome), key.Int32(1))
	assert.False(t, key.Bool(2))
}

func TestSendKeyGuideTaps(t *testing.T) {
	h := startSession(t, nil)

	require.NoError(t, h.session.SendKey(protocol.KeycodeGuide, true))
	for _, action := range []protocol.TouchAction{protocol.TouchDown, protocol.TouchUp} {
		msg := h.expect(protocol.ChannelInput, protocol.MsgInputReport)
		touch := inputFields(t, msg, 3)
		assert.Equal(t, int32(action), touch.Int32(3))
		point, err := touch.Message(1)
		require.NoError(t, err)
		assert.Equal(t, int32(guideTapX), point.Int32(1))
		assert.Equal(t, int32(guideTapY), point.Int32(2))
	}

	require.NoError(t, h.session.SendKey(protocol.KeycodeGuide, false))
	h.expectNone(protocol.ChannelInput, protocol.MsgInputReport, 100*time.Millisecond)
}

func TestSendKeySoftKeysRotate(t *testing.T) {
	h := startSession(t, nil)

	require.NoError(t, h.session.SendKey(protocol.KeycodeSoftLeft, true))
	require.NoError(t, h.session.SendKey(protocol.KeycodeSoftLeft, false))
	require.NoError(t, h.session.SendKey(protocol.KeycodeSoftRight, true))

	for _, want := range []int32{-1, 1} {
		msg := h.expect(protocol.ChannelInput, protocol.MsgInputReport)
		data, err := inputFields(t, msg, 6).Message(1)
		require.NoError(t, err)
		assert.Equal(t, int32(protocol.KeycodeRotaryController), data.Int32(1))
		assert.Equal(t, want, data.Int32(2))
	}
	h.expectNone(protocol.ChannelInput, protocol.MsgInputReport, 100*time.Millisecond)
}

func TestSendKeyNightToggle(t *testing.T) {
	h := startSession(t, nil)

	require.NoError(t, h.session.SendKey(protocol.KeycodeN, true))
	require.NoError(t, h.session.SendKey(protocol.KeycodeN, false))
	require.NoError(t, h.session.SendKey(protocol.KeycodeN, true))

	assert.False(t, h.session.Night())
	h.listener.mu.Lock()
	assert.Equal(t, []bool{true, false}, h.listener.night)
	h.listener.mu.Unlock()
	h.expectNone(protocol.ChannelInput, protocol.MsgInputReport, 50*time.Millisecond)
}

func TestVideoStream(t *testing.T) {
	video := &videoRecorder{}
	h := startSession(t, func(cfg *Config) {
		cfg.Video = video
		cfg.Settings.Video.ForceSoftware = true
	})

	h.send(protocol.ChannelVideo, protocol.MsgMediaSetup, protocol.NewBuilder().Int(1, int64(protocol.CodecH264BP)).Encode())
	h.expect(protocol.ChannelVideo, protocol.MsgMediaConfigResponse)
	focus := h.expect(protocol.ChannelVideo, protocol.MsgVideoFocusNotification)
	assert.Equal(t, protocol.VideoFocusNotification(protocol.VideoFocusProjected, true), focus.Payload)

	h.send(protocol.ChannelVideo, protocol.MsgMediaStart, mediaStart(7))

	first := protocol.Message{
		Channel: protocol.ChannelVideo,
		Flags:   protocol.FlagsFragmented,
		Type:    protocol.MsgMediaDataTimestamped,
		Payload: protocol.TimestampedMediaData(1000, []byte("abc")),
	}
	h.sendWithFlags(protocol.ChannelVideo, protocol.FlagsFragmented, first.Body(), 8)
	h.sendWithFlags(protocol.ChannelVideo, protocol.FlagsMiddle, []byte("def"), 0)
	h.sendWithFlags(protocol.ChannelVideo, protocol.FlagsLastFragment, []byte("gh"), 0)

	single := protocol.Message{Channel: protocol.ChannelVideo, Flags: protocol.FlagsSingle, Type: protocol.MsgMediaData, Payload: []byte("xyz")}
	h.sendWithFlags(protocol.ChannelVideo, protocol.FlagsSingle, single.Body(), 0)

	// An orphaned continuation never reaches the decoder.
	h.sendWithFlags(protocol.ChannelVideo, protocol.FlagsLastFragment, []byte("lost"), 0)

	for i := 0; i < 5; i++ {
		ack := h.expect(protocol.ChannelVideo, protocol.MsgMediaAck)
		assert.Equal(t, protocol.MediaAck(7), ack.Payload)
	}

	assert.Eventually(t, func() bool { return len(video.snapshot()) == 2 }, testTimeout, 10*time.Millisecond)
	assert.Equal(t, [][]byte{[]byte("abcdefgh"), []byte("xyz")}, video.snapshot())
	video.mu.Lock()
	assert.True(t, video.hints[0].ForceSoftware)
	video.mu.Unlock()

	stats := h.session.Stats()
	assert.Equal(t, uint64(2), stats.VideoFrames)
}

func TestVideoStop(t *testing.T) {
	t.Run("honored", func(t *testing.T) {
		h := startSession(t, nil)
		h.send(protocol.ChannelVideo, protocol.MsgMediaStop, nil)
		h.waitDone()
		assert.ErrorIs(t, h.session.Err(), ErrVideoStopped)
	})

	t.Run("after keyframe request", func(t *testing.T) {
		h := startSession(t, nil)
		require.NoError(t, h.session.ForceKeyframe())

		native := h.expect(protocol.ChannelVideo, protocol.MsgVideoFocusNotification)
		assert.Equal(t, protocol.VideoFocusNotification(protocol.VideoFocusNative, true), native.Payload)
		projected := h.expect(protocol.ChannelVideo, protocol.MsgVideoFocusNotification)
		assert.Equal(t, protocol.VideoFocusNotification(protocol.VideoFocusProjected, true), projected.Payload)

		h.send(protocol.ChannelVideo, protocol.MsgMediaStop, nil)
		h.send(protocol.ChannelControl, protocol.MsgPingRequest, protocol.NewBuilder().Int(1, 5).Encode())
		h.expect(protocol.ChannelControl, protocol.MsgPingResponse)
		assert.True(t, h.session.Alive())
	})

	t.Run("backgrounded", func(t *testing.T) {
		h := startSession(t, nil)
		h.session.SetBackgrounded(true)

		h.send(protocol.ChannelVideo, protocol.MsgMediaStop, nil)
		h.send(protocol.ChannelControl, protocol.MsgPingRequest, protocol.NewBuilder().Int(1, 5).Encode())
		h.expect(protocol.ChannelControl, protocol.MsgPingResponse)
		assert.True(t, h.session.Alive())
	})
}

func TestVideoFocusRequest(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelVideo, protocol.MsgVideoFocusRequest, protocol.NewBuilder().Int(2, int64(protocol.VideoFocusProjected)).Encode())
	msg := h.expect(protocol.ChannelVideo, protocol.MsgVideoFocusNotification)
	assert.Equal(t, protocol.VideoFocusNotification(protocol.VideoFocusProjected, false), msg.Payload)

	h.send(protocol.ChannelVideo, protocol.MsgVideoFocusRequest, protocol.NewBuilder().Int(2, int64(protocol.VideoFocusNative)).Encode())
	h.waitDone()
	assert.ErrorIs(t, h.session.Err(), ErrNativeTakeover)

	h.listener.mu.Lock()
	assert.Equal(t, []bool{true, false}, h.listener.videoFocus)
	h.listener.mu.Unlock()
}

func TestAudioStream(t *testing.T) {
	audio := newAudioRecorder()
	h := startSession(t, func(cfg *Config) {
		cfg.Audio = audio
		cfg.Settings.Audio.MediaGain = -3
	})

	h.send(protocol.ChannelMediaAudio, protocol.MsgMediaSetup, protocol.NewBuilder().Int(1, int64(protocol.CodecAACLC)).Encode())
	h.expect(protocol.ChannelMediaAudio, protocol.MsgMediaConfigResponse)
	h.send(protocol.ChannelMediaAudio, protocol.MsgMediaStart, mediaStart(3))
	h.send(protocol.ChannelMediaAudio, protocol.MsgMediaDataTimestamped, protocol.TimestampedMediaData(42, []byte("aac")))
	h.send(protocol.ChannelMediaAudio, protocol.MsgMediaData, []byte("raw"))

	for i := 0; i < 2; i++ {
		ack := h.expect(protocol.ChannelMediaAudio, protocol.MsgMediaAck)
		assert.Equal(t, protocol.MediaAck(3), ack.Payload)
	}

	h.send(protocol.ChannelMediaAudio, protocol.MsgMediaStop, nil)
	assert.Eventually(t, func() bool {
		audio.mu.Lock()
		defer audio.mu.Unlock()
		return len(audio.stopped) == 1
	}, testTimeout, 10*time.Millisecond)

	audio.mu.Lock()
	defer audio.mu.Unlock()
	require.Len(t, audio.streams, 1)
	stream := audio.streams[0]
	assert.Equal(t, protocol.ChannelMediaAudio, stream.Channel)
	assert.Equal(t, protocol.AudioRoleMedia, stream.Role)
	assert.Equal(t, 48000, stream.SampleRate)
	assert.Equal(t, 2, stream.ChannelCount)
	assert.True(t, stream.AAC)
	assert.Equal(t, -3.0, stream.Gain)
	assert.Equal(t, [][]byte{[]byte("aac"), []byte("raw")}, audio.chunks[protocol.ChannelMediaAudio])
	assert.True(t, h.session.Alive(), "audio stops never end the session")
}

func TestMicrophone(t *testing.T) {
	mic := &media.SilentMicrophone{Interval: 5 * time.Millisecond}
	h := startSession(t, func(cfg *Config) { cfg.Microphone = mic })

	h.send(protocol.ChannelMicrophone, protocol.MsgMicrophoneRequest, protocol.NewBuilder().Bool(1, true).Encode())
	resp := h.expect(protocol.ChannelMicrophone, protocol.MsgMicrophoneResponse)
	assert.Equal(t, protocol.MicrophoneResponse(protocol.StatusOK, 0), resp.Payload)
	assert.True(t, mic.Capturing())

	data := h.expect(protocol.ChannelMicrophone, protocol.MsgMediaDataTimestamped)
	samples, err := protocol.MediaData(data.Type, data.Payload)
	require.NoError(t, err)
	assert.Len(t, samples, 160)

	h.send(protocol.ChannelMicrophone, protocol.MsgMicrophoneRequest, protocol.NewBuilder().Bool(1, false).Encode())
	assert.Eventually(t, func() bool { return !mic.Capturing() }, testTimeout, 10*time.Millisecond)
}

func TestPlayback(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelPlayback, protocol.MsgPlaybackStatus, protocol.NewBuilder().Int(1, int64(protocol.PlaybackPlaying)).Encode())
	assert.Eventually(t, func() bool {
		h.listener.mu.Lock()
		defer h.listener.mu.Unlock()
		return len(h.listener.playback) == 1
	}, testTimeout, 10*time.Millisecond)
	h.listener.mu.Lock()
	assert.Equal(t, protocol.PlaybackPlaying, h.listener.playback[0].State)
	h.listener.mu.Unlock()
}

func TestUnknownMessageDropped(t *testing.T) {
	h := startSession(t, nil)

	h.send(protocol.ChannelControl, 0x4000, []byte{1, 2, 3})
	h.send(protocol.ChannelControl, protocol.MsgPingRequest, protocol.NewBuilder().Int(1, 9).Encode())
	h.expect(protocol.ChannelControl, protocol.MsgPingResponse)

	assert.Equal(t, uint64(1), h.session.Stats().UnknownDropped)
	assert.True(t, h.session.Alive())
}
