package protocol

import "fmt"

// Channel identifies a logical sub-stream multiplexed over the transport.
// The set is closed; which channels are offered is decided once, at service
// discovery time.
type Channel uint8

const (
	ChannelControl     Channel = 0
	ChannelSensor      Channel = 1
	ChannelVideo       Channel = 2
	ChannelInput       Channel = 3
	ChannelMediaAudio  Channel = 4
	ChannelSpeechAudio Channel = 5
	ChannelSystemAudio Channel = 6
	ChannelMicrophone  Channel = 7
	ChannelBluetooth   Channel = 8
	ChannelPlayback    Channel = 9
)

// AudioChannels lists the audio sink channels in manifest order.
var AudioChannels = []Channel{ChannelMediaAudio, ChannelSpeechAudio, ChannelSystemAudio}

// IsAudio reports whether c is one of the three audio sink channels.
func (c Channel) IsAudio() bool {
	return c == ChannelMediaAudio || c == ChannelSpeechAudio || c == ChannelSystemAudio
}

// IsMediaSink reports whether c carries media the head unit renders.
func (c Channel) IsMediaSink() bool {
	return c == ChannelVideo || c.IsAudio()
}

// Valid reports whether c is part of the channel table.
func (c Channel) Valid() bool {
	return c <= ChannelPlayback
}

func (c Channel) String() string {
	switch c {
	case ChannelControl:
		return "control"
	case ChannelSensor:
		return "sensor"
	case ChannelVideo:
		return "video"
	case ChannelInput:
		return "input"
	case ChannelMediaAudio:
		return "audio-media"
	case ChannelSpeechAudio:
		return "audio-speech"
	case ChannelSystemAudio:
		return "audio-system"
	case ChannelMicrophone:
		return "microphone"
	case ChannelBluetooth:
		return "bluetooth"
	case ChannelPlayback:
		return "playback-status"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}
