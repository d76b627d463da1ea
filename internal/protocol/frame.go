package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire layout constants
const (
	// HeaderSize is the cleartext header: channel, flags, length and the
	// 16-bit type that leads every plaintext body.
	HeaderSize = 6

	// EncryptedHeaderSize is the prefix in front of every frame body:
	// channel, flags and the encrypted body length.
	EncryptedHeaderSize = 4

	// TotalSizeFieldSize is the extra field after the header of a first
	// fragment (flags == FlagsFragmented).
	TotalSizeFieldSize = 4

	// TypeSize is the opcode prefix of a plaintext body.
	TypeSize = 2

	// MaxFrameSize bounds the body length field.
	MaxFrameSize = 65535
)

// FrameErrorKind categorises framing faults.
type FrameErrorKind int

const (
	// FrameErrShort means fewer bytes were supplied than the structure needs
	FrameErrShort FrameErrorKind = iota
	// FrameErrLength means a declared length is out of bounds
	FrameErrLength
	// FrameErrFlags means the flags cannot be applied to the operation
	FrameErrFlags
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrShort:
		return "short frame"
	case FrameErrLength:
		return "length out of range"
	case FrameErrFlags:
		return "invalid flags"
	default:
		return fmt.Sprintf("FrameErrorKind(%d)", int(k))
	}
}

// FrameError is returned by the codec for malformed frames.
type FrameError struct {
	Kind    FrameErrorKind
	Message string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches another *FrameError of the same kind, so callers can test
// errors.Is(err, &FrameError{Kind: FrameErrLength}).
func (e *FrameError) Is(target error) bool {
	var other *FrameError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func frameErrorf(kind FrameErrorKind, format string, args ...any) error {
	return &FrameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Header is a decoded cleartext header.
type Header struct {
	Channel Channel
	Flags   byte
	Length  uint16 // wire value: payload length + TypeSize
	Type    uint16 // only the low 16 bits exist on the wire
}

// PayloadLength is the number of payload bytes following the header.
func (h Header) PayloadLength() int {
	return int(h.Length) - TypeSize
}

// EncodeHeader builds the 6-byte cleartext header. The length field is
// written as payloadLength+2 because it counts the type field.
func EncodeHeader(ch Channel, flags byte, msgType uint16, payloadLength int) ([HeaderSize]byte, error) {
	var header [HeaderSize]byte
	if payloadLength < 0 || payloadLength+TypeSize > MaxFrameSize {
		return header, frameErrorf(FrameErrLength, "payload length %d exceeds %d", payloadLength, MaxFrameSize-TypeSize)
	}
	header[0] = byte(ch)
	header[1] = flags
	binary.BigEndian.PutUint16(header[2:4], uint16(payloadLength+TypeSize))
	binary.BigEndian.PutUint16(header[4:6], msgType)
	return header, nil
}

// DecodeHeader parses a 6-byte cleartext header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, frameErrorf(FrameErrShort, "header needs %d bytes, got %d", HeaderSize, len(b))
	}
	h := Header{
		Channel: Channel(b[0]),
		Flags:   b[1],
		Length:  binary.BigEndian.Uint16(b[2:4]),
		Type:    binary.BigEndian.Uint16(b[4:6]),
	}
	if h.Length < TypeSize {
		return h, frameErrorf(FrameErrLength, "length %d shorter than type field", h.Length)
	}
	return h, nil
}

// EncryptedHeader is the prefix of every frame on the data path.
type EncryptedHeader struct {
	Channel Channel
	Flags   byte
	Length  int // body length (ciphertext when encrypted)
}

// HasTotalSize reports whether the 4-byte total fragmented size follows.
func (h EncryptedHeader) HasTotalSize() bool {
	return h.Flags == FlagsFragmented
}

// Size is the number of bytes before the body.
func (h EncryptedHeader) Size() int {
	if h.HasTotalSize() {
		return EncryptedHeaderSize + TotalSizeFieldSize
	}
	return EncryptedHeaderSize
}

// Encrypted reports whether the body must be decrypted.
func (h EncryptedHeader) Encrypted() bool {
	return h.Flags&FlagEncrypted != 0
}

// DecodeEncryptedHeader parses the 4-byte frame prefix.
func DecodeEncryptedHeader(b []byte) (EncryptedHeader, error) {
	if len(b) < EncryptedHeaderSize {
		return EncryptedHeader{}, frameErrorf(FrameErrShort, "header needs %d bytes, got %d", EncryptedHeaderSize, len(b))
	}
	return EncryptedHeader{
		Channel: Channel(b[0]),
		Flags:   b[1],
		Length:  int(binary.BigEndian.Uint16(b[2:4])),
	}, nil
}

// ValidateLength checks a declared body length against the frame limits.
func ValidateLength(length int) error {
	if length < 0 || length > MaxFrameSize {
		return frameErrorf(FrameErrLength, "declared length %d outside 0..%d", length, MaxFrameSize)
	}
	return nil
}

// MinRecordSize is the smallest encrypted body: one TLS record header.
const MinRecordSize = 5

// ValidateHeader checks a received frame prefix before its body is read.
// Encrypted bodies hold at least one TLS record header and cleartext first
// fragments at least the type field.
func ValidateHeader(h EncryptedHeader) error {
	if err := ValidateLength(h.Length); err != nil {
		return err
	}
	if h.Flags&^(FlagFirst|FlagLast|FlagControl|FlagEncrypted) != 0 {
		return frameErrorf(FrameErrFlags, "unknown flag bits 0x%02x", h.Flags)
	}
	switch {
	case h.Encrypted() && h.Length < MinRecordSize:
		return frameErrorf(FrameErrLength, "encrypted body of %d bytes is shorter than a record header", h.Length)
	case !h.Encrypted() && h.Flags&FlagFirst != 0 && h.Length < TypeSize:
		return frameErrorf(FrameErrLength, "cleartext body of %d bytes has no type field", h.Length)
	}
	return nil
}

// EncodeFrame prefixes body with channel, flags and body length.
func EncodeFrame(ch Channel, flags byte, body []byte) ([]byte, error) {
	if flags == FlagsFragmented {
		return nil, frameErrorf(FrameErrFlags, "outgoing frames are never fragmented")
	}
	if err := ValidateLength(len(body)); err != nil {
		return nil, err
	}
	frame := make([]byte, EncryptedHeaderSize+len(body))
	frame[0] = byte(ch)
	frame[1] = flags
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(body)))
	copy(frame[EncryptedHeaderSize:], body)
	return frame, nil
}

// RawMessage builds a cleartext frame: header followed by payload.
func RawMessage(ch Channel, flags byte, msgType uint16, payload []byte) ([]byte, error) {
	header, err := EncodeHeader(ch, flags, msgType, len(payload))
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, HeaderSize+len(payload))
	frame = append(frame, header[:]...)
	return append(frame, payload...), nil
}

// Protocol version offered in the version request.
const (
	VersionMajor uint16 = 1
	VersionMinor uint16 = 2
)

var (
	versionRequestPayload = []byte{0x00, byte(VersionMajor), 0x00, byte(VersionMinor)}
	statusOKPayload       = []byte{0x08, 0x00} // field 1 (status) = 0
)

// VersionRequest returns the cleartext version request frame.
func VersionRequest() []byte {
	frame, _ := RawMessage(ChannelControl, FlagsBootstrap, MsgVersionRequest, versionRequestPayload)
	return frame
}

// StatusOKMessage returns the cleartext auth-complete frame sent after the handshake.
func StatusOKMessage() []byte {
	frame, _ := RawMessage(ChannelControl, FlagsBootstrap, MsgAuthComplete, statusOKPayload)
	return frame
}

// HandshakeMessage wraps TLS handshake bytes in a cleartext control frame.
func HandshakeMessage(tlsBytes []byte) ([]byte, error) {
	return RawMessage(ChannelControl, FlagsBootstrap, MsgTLSHandshake, tlsBytes)
}

// VersionResponse is the peer's reply to the version request.
type VersionResponse struct {
	Major  uint16
	Minor  uint16
	Status uint16
}

// Matched reports whether the peer accepted our version.
func (v VersionResponse) Matched() bool {
	return v.Status == 0
}

// ParseVersionResponse decodes major(2) minor(2) status(2). Older peers omit
// the status; it is then treated as matched.
func ParseVersionResponse(payload []byte) (VersionResponse, error) {
	if len(payload) < 4 {
		return VersionResponse{}, frameErrorf(FrameErrShort, "version response needs 4 bytes, got %d", len(payload))
	}
	v := VersionResponse{
		Major: binary.BigEndian.Uint16(payload[0:2]),
		Minor: binary.BigEndian.Uint16(payload[2:4]),
	}
	if len(payload) >= 6 {
		v.Status = binary.BigEndian.Uint16(payload[4:6])
	}
	return v, nil
}
