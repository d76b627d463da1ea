package protocol

import (
	"encoding/binary"
	"fmt"
)

// MediaCodec is the codec announced in a media setup request.
type MediaCodec int32

const (
	CodecPCM    MediaCodec = 1
	CodecAACLC  MediaCodec = 2
	CodecH264BP MediaCodec = 3
)

func (c MediaCodec) String() string {
	switch c {
	case CodecPCM:
		return "pcm"
	case CodecAACLC:
		return "aac-lc"
	case CodecH264BP:
		return "h264"
	default:
		return fmt.Sprintf("codec(%d)", int32(c))
	}
}

// ParseMediaSetup returns the codec the phone intends to send.
func ParseMediaSetup(payload []byte) (MediaCodec, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return 0, err
	}
	return MediaCodec(fields.Int32(1)), nil
}

// MediaConfigReady is the config status meaning "ready to receive".
const MediaConfigReady int32 = 2

// MediaConfigResponse accepts one unacknowledged frame on configuration 0.
func MediaConfigResponse() []byte {
	return NewBuilder().
		Int(1, int64(MediaConfigReady)).
		Uint(2, 1).
		Uint(3, 0).
		Encode()
}

// MediaStart is the phone's announcement that a stream begins.
type MediaStart struct {
	SessionID int32
	ConfigID  int32
}

// ParseMediaStart decodes a media start request.
func ParseMediaStart(payload []byte) (MediaStart, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return MediaStart{}, err
	}
	return MediaStart{
		SessionID: fields.Int32(1),
		ConfigID:  fields.Int32(2),
	}, nil
}

// MediaAck acknowledges one media data frame of a session.
func MediaAck(sessionID int32) []byte {
	return NewBuilder().Int(1, int64(sessionID)).Uint(2, 1).Encode()
}

// MicrophoneRequest opens or closes the microphone stream.
type MicrophoneRequest struct {
	Open              bool
	NoiseSuppression  bool
	EchoCancellation  bool
	MaxUnacknowledged int32
}

// ParseMicrophoneRequest decodes a microphone request.
func ParseMicrophoneRequest(payload []byte) (MicrophoneRequest, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return MicrophoneRequest{}, err
	}
	return MicrophoneRequest{
		Open:              fields.Bool(1),
		NoiseSuppression:  fields.Bool(2),
		EchoCancellation:  fields.Bool(3),
		MaxUnacknowledged: fields.Int32(4),
	}, nil
}

// MicrophoneResponse answers a microphone open request.
func MicrophoneResponse(status, sessionID int32) []byte {
	return NewBuilder().Int(1, int64(status)).Int(2, int64(sessionID)).Encode()
}

// Video focus modes
const (
	VideoFocusProjected int32 = 1
	VideoFocusNative    int32 = 2
)

// VideoFocusRequest is sent by the phone when it wants or gives up the display.
type VideoFocusRequest struct {
	DisplayID int32
	Mode      int32
	Reason    int32
}

// NativeTakeover reports whether the phone hands the display back to the
// head unit's own UI.
func (r VideoFocusRequest) NativeTakeover() bool {
	return r.Mode == VideoFocusNative
}

// ParseVideoFocusRequest decodes a video focus request.
func ParseVideoFocusRequest(payload []byte) (VideoFocusRequest, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return VideoFocusRequest{}, err
	}
	return VideoFocusRequest{
		DisplayID: fields.Int32(1),
		Mode:      fields.Int32(2),
		Reason:    fields.Int32(3),
	}, nil
}

// VideoFocusNotification tells the phone whether it may project.
func VideoFocusNotification(mode int32, unsolicited bool) []byte {
	return NewBuilder().Int(1, int64(mode)).Bool(2, unsolicited).Encode()
}

// TimestampSize is the timestamp prefix of MsgMediaDataTimestamped frames.
const TimestampSize = 8

// MediaData strips the timestamp of a media data payload.
func MediaData(msgType uint16, payload []byte) ([]byte, error) {
	if msgType != MsgMediaDataTimestamped {
		return payload, nil
	}
	if len(payload) < TimestampSize {
		return nil, frameErrorf(FrameErrShort, "timestamped media data of %d bytes", len(payload))
	}
	return payload[TimestampSize:], nil
}

// TimestampedMediaData prefixes data with a big-endian microsecond timestamp.
func TimestampedMediaData(timestampMicros uint64, data []byte) []byte {
	payload := make([]byte, TimestampSize+len(data))
	binary.BigEndian.PutUint64(payload[:TimestampSize], timestampMicros)
	copy(payload[TimestampSize:], data)
	return payload
}
