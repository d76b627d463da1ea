package media

import (
	"context"

	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
)

// VideoHint carries decoder preferences from the settings.
type VideoHint struct {
	ForceSoftware bool
	Codec         string
}

// VideoDecoder receives complete coded video frames.
type VideoDecoder interface {
	DecodeVideo(frame []byte, hint VideoHint) error
}

// AudioStream describes one audio channel when playback starts.
type AudioStream struct {
	Channel      protocol.Channel
	Role         protocol.AudioRole
	SampleRate   int
	BitDepth     int
	ChannelCount int
	AAC          bool
	Gain         float64 // volume offset in dB
}

// BytesPerSecond is the PCM data rate of the stream.
func (s AudioStream) BytesPerSecond() int {
	return s.SampleRate * s.ChannelCount * s.BitDepth / 8
}

// AudioDecoder receives audio data per channel. Decode may block; that is
// how playback slows the read loop down.
type AudioDecoder interface {
	StartAudio(stream AudioStream) error
	DecodeAudio(ctx context.Context, ch protocol.Channel, data []byte) error
	StopAudio(ch protocol.Channel) error
}

// Microphone captures PCM and hands each chunk to deliver until Stop.
type Microphone interface {
	Start(sampleRate int, deliver func(pcm []byte)) error
	Stop() error
}

// FocusArbiter decides audio focus requests with the host audio system. It
// may block; callers run it off the dispatch path.
type FocusArbiter interface {
	RequestFocus(ctx context.Context, req protocol.AudioFocusRequestType) bool
}

// AlwaysGrant is a FocusArbiter that grants every request.
type AlwaysGrant struct{}

// RequestFocus returns true.
func (AlwaysGrant) RequestFocus(context.Context, protocol.AudioFocusRequestType) bool {
	return true
}

// Discard drops all media. It satisfies VideoDecoder and AudioDecoder.
type Discard struct{}

func (Discard) DecodeVideo([]byte, VideoHint) error                         { return nil }
func (Discard) StartAudio(AudioStream) error                                { return nil }
func (Discard) DecodeAudio(context.Context, protocol.Channel, []byte) error { return nil }
func (Discard) StopAudio(protocol.Channel) error                            { return nil }
