package protocol

// Stream types of media channel descriptors
const (
	StreamAudio int32 = 1
	StreamVideo int32 = 3
)

// AudioRole distinguishes the three audio sinks.
type AudioRole int32

const (
	AudioRoleSpeech AudioRole = 1
	AudioRoleSystem AudioRole = 2
	AudioRoleMedia  AudioRole = 3
)

func (r AudioRole) String() string {
	switch r {
	case AudioRoleSpeech:
		return "speech"
	case AudioRoleSystem:
		return "system"
	case AudioRoleMedia:
		return "media"
	default:
		return "unknown"
	}
}

// RoleForChannel returns the audio role carried by an audio channel.
func RoleForChannel(ch Channel) (AudioRole, bool) {
	switch ch {
	case ChannelMediaAudio:
		return AudioRoleMedia, true
	case ChannelSpeechAudio:
		return AudioRoleSpeech, true
	case ChannelSystemAudio:
		return AudioRoleSystem, true
	default:
		return 0, false
	}
}

// VideoResolution values of a video configuration
const (
	Resolution800x480   int32 = 1
	Resolution1280x720  int32 = 2
	Resolution1920x1080 int32 = 3
)

// VideoFrameRate values of a video configuration
const (
	FrameRate30 int32 = 1
	FrameRate60 int32 = 2
)

// Bluetooth pairing methods
const (
	PairingPIN         int32 = 2
	PairingNumericalOK int32 = 4
)

// AudioConfig is one PCM format a sink accepts.
type AudioConfig struct {
	SampleRate int32
	BitDepth   int32
	Channels   int32
}

func (c AudioConfig) build() *Builder {
	return NewBuilder().
		Int(1, int64(c.SampleRate)).
		Int(2, int64(c.BitDepth)).
		Int(3, int64(c.Channels))
}

// VideoConfig is one video format the display accepts.
type VideoConfig struct {
	Resolution   int32
	FrameRate    int32
	MarginWidth  int32
	MarginHeight int32
	Density      int32
}

func (c VideoConfig) build() *Builder {
	return NewBuilder().
		Int(1, int64(c.Resolution)).
		Int(2, int64(c.FrameRate)).
		Int(3, int64(c.MarginWidth)).
		Int(4, int64(c.MarginHeight)).
		Int(5, int64(c.Density))
}

// MediaSinkService describes a video or audio output.
type MediaSinkService struct {
	StreamType      int32
	AudioRole       AudioRole
	Audio           []AudioConfig
	Video           []VideoConfig
	AvailableInCall bool
	Codec           MediaCodec // preferred codec, omitted when zero
}

func (s *MediaSinkService) build() *Builder {
	b := NewBuilder().Int(1, int64(s.StreamType))
	if s.StreamType == StreamAudio {
		b.Int(2, int64(s.AudioRole))
		for _, c := range s.Audio {
			b.Message(3, c.build())
		}
	}
	for _, c := range s.Video {
		b.Message(4, c.build())
	}
	if s.AvailableInCall {
		b.Bool(5, true)
	}
	if s.Codec != 0 {
		b.Int(6, int64(s.Codec))
	}
	return b
}

// MediaSourceService describes the microphone.
type MediaSourceService struct {
	StreamType int32
	Audio      AudioConfig
}

func (s *MediaSourceService) build() *Builder {
	return NewBuilder().Int(1, int64(s.StreamType)).Message(2, s.Audio.build())
}

// InputService describes touch geometry and supported keys.
type InputService struct {
	Keycodes    []int32
	TouchWidth  int32
	TouchHeight int32
}

func (s *InputService) build() *Builder {
	b := NewBuilder()
	for _, k := range s.Keycodes {
		b.Int(1, int64(k))
	}
	if s.TouchWidth > 0 && s.TouchHeight > 0 {
		touch := NewBuilder().Int(1, int64(s.TouchWidth)).Int(2, int64(s.TouchHeight))
		b.Message(2, touch)
	}
	return b
}

// SensorService lists the offered sensors.
type SensorService struct {
	Types []SensorType
}

func (s *SensorService) build() *Builder {
	b := NewBuilder()
	for _, t := range s.Types {
		b.Message(1, NewBuilder().Int(1, int64(t)))
	}
	return b
}

// BluetoothService announces the head unit's bluetooth adapter.
type BluetoothService struct {
	Address        string
	PairingMethods []int32
}

func (s *BluetoothService) build() *Builder {
	b := NewBuilder().String(1, s.Address)
	for _, m := range s.PairingMethods {
		b.Int(2, int64(m))
	}
	return b
}

// ChannelDescriptor is one entry of the manifest. Exactly one service
// pointer is set, or PlaybackStatus is true.
type ChannelDescriptor struct {
	ID             Channel
	Sensor         *SensorService
	MediaSink      *MediaSinkService
	Input          *InputService
	MediaSource    *MediaSourceService
	Bluetooth      *BluetoothService
	PlaybackStatus bool
}

func (d ChannelDescriptor) build() *Builder {
	b := NewBuilder().Int(1, int64(d.ID))
	switch {
	case d.Sensor != nil:
		b.Message(2, d.Sensor.build())
	case d.MediaSink != nil:
		b.Message(3, d.MediaSink.build())
	case d.Input != nil:
		b.Message(4, d.Input.build())
	case d.MediaSource != nil:
		b.Message(5, d.MediaSource.build())
	case d.Bluetooth != nil:
		b.Message(6, d.Bluetooth.build())
	case d.PlaybackStatus:
		b.Bytes(9, nil)
	}
	return b
}

// ServiceDiscoveryResponse is the capability manifest.
type ServiceDiscoveryResponse struct {
	Channels            []ChannelDescriptor
	HeadUnitName        string
	CarModel            string
	CarYear             string
	CarSerial           string
	LeftHandDrive       bool
	Make                string
	Model               string
	SoftwareBuild       string
	SoftwareVersion     string
	NativeMediaDuringVR bool
}

// Marshal encodes the manifest in channel order.
func (r *ServiceDiscoveryResponse) Marshal() []byte {
	b := NewBuilder()
	for _, ch := range r.Channels {
		b.Message(1, ch.build())
	}
	return b.
		String(2, r.HeadUnitName).
		String(3, r.CarModel).
		String(4, r.CarYear).
		String(5, r.CarSerial).
		Bool(6, r.LeftHandDrive).
		String(7, r.Make).
		String(8, r.Model).
		String(9, r.SoftwareBuild).
		String(10, r.SoftwareVersion).
		Bool(11, r.NativeMediaDuringVR).
		Encode()
}

// Channel returns the descriptor for id.
func (r *ServiceDiscoveryResponse) Channel(id Channel) (ChannelDescriptor, bool) {
	for _, ch := range r.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChannelDescriptor{}, false
}
