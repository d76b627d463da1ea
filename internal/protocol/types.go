package protocol

import "fmt"

// Frame flag bits
const (
	FlagFirst     byte = 0x01
	FlagLast      byte = 0x02
	FlagControl   byte = 0x04 // control opcode on a non-control channel
	FlagEncrypted byte = 0x08
)

// Flag combinations seen on the wire
const (
	FlagsBootstrap    = FlagFirst | FlagLast                 // 0x03 cleartext single frame
	FlagsSingle       = FlagEncrypted | FlagFirst | FlagLast // 0x0B
	FlagsFragmented   = FlagEncrypted | FlagFirst            // 0x09 first fragment, total size follows header
	FlagsMiddle       = FlagEncrypted                        // 0x08
	FlagsLastFragment = FlagEncrypted | FlagLast             // 0x0A
	FlagsControlOnly  = FlagsSingle | FlagControl            // 0x0F
)

// Control-plane opcodes (range 0..31, valid on every channel for channel-open)
const (
	MsgVersionRequest           uint16 = 1
	MsgVersionResponse          uint16 = 2
	MsgTLSHandshake             uint16 = 3
	MsgAuthComplete             uint16 = 4
	MsgServiceDiscoveryRequest  uint16 = 5
	MsgServiceDiscoveryResponse uint16 = 6
	MsgChannelOpenRequest       uint16 = 7
	MsgChannelOpenResponse      uint16 = 8
	MsgPingRequest              uint16 = 11
	MsgPingResponse             uint16 = 12
	MsgNavFocusRequest          uint16 = 13
	MsgNavFocusNotification     uint16 = 14
	MsgByeByeRequest            uint16 = 15
	MsgByeByeResponse           uint16 = 16
	MsgVoiceSessionRequest      uint16 = 17
	MsgAudioFocusRequest        uint16 = 18
	MsgAudioFocusNotification   uint16 = 19
)

// Media channel opcodes
const (
	MsgMediaDataTimestamped   uint16 = 0x0000 // 8-byte timestamp precedes the data
	MsgMediaData              uint16 = 0x0001 // codec config or untimed data
	MsgMediaSetup             uint16 = 0x8000
	MsgMediaStart             uint16 = 0x8001
	MsgMediaStop              uint16 = 0x8002
	MsgMediaConfigResponse    uint16 = 0x8003
	MsgMediaAck               uint16 = 0x8004
	MsgMicrophoneRequest      uint16 = 0x8005
	MsgMicrophoneResponse     uint16 = 0x8006
	MsgVideoFocusRequest      uint16 = 0x8007
	MsgVideoFocusNotification uint16 = 0x8008
)

// Sensor channel opcodes
const (
	MsgSensorStartRequest  uint16 = 0x8001
	MsgSensorStartResponse uint16 = 0x8002
	MsgSensorEvent         uint16 = 0x8003
)

// Input channel opcodes
const (
	MsgInputReport        uint16 = 0x8001
	MsgKeyBindingRequest  uint16 = 0x8002
	MsgKeyBindingResponse uint16 = 0x8003
)

// Media playback status channel opcodes
const (
	MsgPlaybackStatus   uint16 = 0x8001
	MsgPlaybackInput    uint16 = 0x8002
	MsgPlaybackMetadata uint16 = 0x8003
)

// Status codes carried in responses
const (
	StatusOK int32 = 0
)

// IsControlType reports whether t falls in one of the three reserved
// control-type ranges.
func IsControlType(t uint16) bool {
	return t <= 31 || (t >= 32768 && t <= 32799) || t >= 65504
}

// IsMediaData reports whether t is one of the two media data opcodes.
func IsMediaData(t uint16) bool {
	return t == MsgMediaDataTimestamped || t == MsgMediaData
}

// IsChannelControl reports whether t is a control-plane opcode that keeps
// its meaning on every channel.
func IsChannelControl(t uint16) bool {
	return t <= 31
}

// TypeName returns a human-readable name for an opcode on a channel.
func TypeName(ch Channel, t uint16) string {
	if t <= 31 {
		switch t {
		case MsgMediaDataTimestamped:
			if ch.IsMediaSink() || ch == ChannelMicrophone {
				return "MediaDataTimestamped"
			}
		case MsgMediaData:
			if ch.IsMediaSink() || ch == ChannelMicrophone {
				return "MediaData"
			}
			return "VersionRequest"
		case MsgVersionResponse:
			return "VersionResponse"
		case MsgTLSHandshake:
			return "TLSHandshake"
		case MsgAuthComplete:
			return "AuthComplete"
		case MsgServiceDiscoveryRequest:
			return "ServiceDiscoveryRequest"
		case MsgServiceDiscoveryResponse:
			return "ServiceDiscoveryResponse"
		case MsgChannelOpenRequest:
			return "ChannelOpenRequest"
		case MsgChannelOpenResponse:
			return "ChannelOpenResponse"
		case MsgPingRequest:
			return "PingRequest"
		case MsgPingResponse:
			return "PingResponse"
		case MsgNavFocusRequest:
			return "NavFocusRequest"
		case MsgNavFocusNotification:
			return "NavFocusNotification"
		case MsgByeByeRequest:
			return "ByeByeRequest"
		case MsgByeByeResponse:
			return "ByeByeResponse"
		case MsgVoiceSessionRequest:
			return "VoiceSessionRequest"
		case MsgAudioFocusRequest:
			return "AudioFocusRequest"
		case MsgAudioFocusNotification:
			return "AudioFocusNotification"
		}
		return fmt.Sprintf("Control(0x%04x)", t)
	}

	switch ch {
	case ChannelSensor:
		switch t {
		case MsgSensorStartRequest:
			return "SensorStartRequest"
		case MsgSensorStartResponse:
			return "SensorStartResponse"
		case MsgSensorEvent:
			return "SensorEvent"
		}
	case ChannelInput:
		switch t {
		case MsgInputReport:
			return "InputReport"
		case MsgKeyBindingRequest:
			return "KeyBindingRequest"
		case MsgKeyBindingResponse:
			return "KeyBindingResponse"
		}
	case ChannelPlayback:
		switch t {
		case MsgPlaybackStatus:
			return "PlaybackStatus"
		case MsgPlaybackInput:
			return "PlaybackInput"
		case MsgPlaybackMetadata:
			return "PlaybackMetadata"
		}
	default:
		switch t {
		case MsgMediaSetup:
			return "MediaSetup"
		case MsgMediaStart:
			return "MediaStart"
		case MsgMediaStop:
			return "MediaStop"
		case MsgMediaConfigResponse:
			return "MediaConfigResponse"
		case MsgMediaAck:
			return "MediaAck"
		case MsgMicrophoneRequest:
			return "MicrophoneRequest"
		case MsgMicrophoneResponse:
			return "MicrophoneResponse"
		case MsgVideoFocusRequest:
			return "VideoFocusRequest"
		case MsgVideoFocusNotification:
			return "VideoFocusNotification"
		}
	}
	return fmt.Sprintf("Unknown(0x%04x)", t)
}
