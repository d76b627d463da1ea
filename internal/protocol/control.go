package protocol

// Control-channel payloads.

// StatusResponse builds the generic reply used by channel-open, sensor-start
// and key-binding.
func StatusResponse(status int32) []byte {
	return NewBuilder().Int(1, int64(status)).Encode()
}

// ParseStatus reads the status field of a generic response.
func ParseStatus(payload []byte) (int32, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return fields.Int32(1), nil
}

// ServiceDiscoveryRequest is sent by the phone to ask for the manifest.
type ServiceDiscoveryRequest struct {
	DeviceName string
	Brand      string
}

// ParseServiceDiscoveryRequest decodes a service discovery request.
func ParseServiceDiscoveryRequest(payload []byte) (ServiceDiscoveryRequest, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return ServiceDiscoveryRequest{}, err
	}
	return ServiceDiscoveryRequest{
		DeviceName: fields.String(4),
		Brand:      fields.String(5),
	}, nil
}

// ChannelOpenRequest asks the head unit to open a channel.
type ChannelOpenRequest struct {
	Priority  int32
	ChannelID int32
}

// ParseChannelOpenRequest decodes a channel open request.
func ParseChannelOpenRequest(payload []byte) (ChannelOpenRequest, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return ChannelOpenRequest{}, err
	}
	return ChannelOpenRequest{
		Priority:  fields.Int32(1),
		ChannelID: fields.Int32(2),
	}, nil
}

// ParsePingRequest returns the timestamp carried by a ping.
func ParsePingRequest(payload []byte) (int64, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return fields.Int64(1), nil
}

// PingResponse echoes a timestamp.
func PingResponse(timestamp int64) []byte {
	return NewBuilder().Int(1, timestamp).Encode()
}

// NavFocusGranted is the only nav focus level the head unit hands out.
const NavFocusGranted int32 = 2

// ParseNavFocusRequest returns the requested focus type.
func ParseNavFocusRequest(payload []byte) (int32, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return fields.Int32(1), nil
}

// NavFocusNotification reports the granted nav focus.
func NavFocusNotification(focus int32) []byte {
	return NewBuilder().Int(1, int64(focus)).Encode()
}

// Bye-bye reasons
const (
	ByeByeReasonQuit int32 = 1
)

// ByeByeRequest asks the peer to end the session.
func ByeByeRequest(reason int32) []byte {
	return NewBuilder().Int(1, int64(reason)).Encode()
}

// ParseByeByeRequest returns the reason of a bye-bye request.
func ParseByeByeRequest(payload []byte) (int32, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return fields.Int32(1), nil
}

// ByeByeResponse acknowledges a bye-bye request. It has no fields.
func ByeByeResponse() []byte {
	return []byte{}
}

// AudioFocusRequestType is what the phone asks for.
type AudioFocusRequestType int32

const (
	AudioFocusGain          AudioFocusRequestType = 1
	AudioFocusGainTransient AudioFocusRequestType = 2
	AudioFocusGainNavi      AudioFocusRequestType = 3 // transient, may duck
	AudioFocusRelease       AudioFocusRequestType = 4
)

func (t AudioFocusRequestType) String() string {
	switch t {
	case AudioFocusGain:
		return "gain"
	case AudioFocusGainTransient:
		return "gain-transient"
	case AudioFocusGainNavi:
		return "gain-transient-may-duck"
	case AudioFocusRelease:
		return "release"
	default:
		return "unknown"
	}
}

// AudioFocusState is what the head unit grants.
type AudioFocusState int32

const (
	AudioFocusStateGain             AudioFocusState = 1
	AudioFocusStateGainTransient    AudioFocusState = 2
	AudioFocusStateLoss             AudioFocusState = 3
	AudioFocusStateGainGuidanceOnly AudioFocusState = 7
)

// FocusOutcome maps a request to the state reported back to the phone.
// Unknown requests are answered with a loss.
func FocusOutcome(req AudioFocusRequestType) AudioFocusState {
	switch req {
	case AudioFocusRelease:
		return AudioFocusStateLoss
	case AudioFocusGain:
		return AudioFocusStateGain
	case AudioFocusGainTransient:
		return AudioFocusStateGainTransient
	case AudioFocusGainNavi:
		return AudioFocusStateGainGuidanceOnly
	default:
		return AudioFocusStateLoss
	}
}

// ParseAudioFocusRequest returns the requested focus type.
func ParseAudioFocusRequest(payload []byte) (AudioFocusRequestType, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return AudioFocusRequestType(fields.Int32(1)), nil
}

// AudioFocusNotification reports the focus state to the phone.
func AudioFocusNotification(state AudioFocusState, unsolicited bool) []byte {
	return NewBuilder().Int(1, int64(state)).Bool(2, unsolicited).Encode()
}

// Voice session states
const (
	VoiceSessionStart int32 = 1
	VoiceSessionEnd   int32 = 2
)

// ParseVoiceSessionRequest returns the voice session state.
func ParseVoiceSessionRequest(payload []byte) (int32, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return fields.Int32(1), nil
}
