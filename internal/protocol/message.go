package protocol

import (
	"encoding/binary"
	"fmt"
)

// Message is one application message. It is immutable once constructed.
//
// For continuation fragments (flags without FlagFirst) the body carries no
// opcode: Type is zero and Payload holds the whole decrypted body.
type Message struct {
	Channel Channel
	Flags   byte
	Type    uint16
	Payload []byte
}

// NewMessage builds an outgoing message and picks its flags. Control opcodes
// on a non-control channel carry FlagControl.
func NewMessage(ch Channel, msgType uint16, payload []byte) *Message {
	flags := FlagsSingle
	if ch != ChannelControl && IsChannelControl(msgType) {
		flags = FlagsControlOnly
	}
	return &Message{
		Channel: ch,
		Flags:   flags,
		Type:    msgType,
		Payload: payload,
	}
}

// ParseMessage builds a message from a decrypted or cleartext body.
func ParseMessage(ch Channel, flags byte, body []byte) (*Message, error) {
	if flags&FlagFirst == 0 {
		return &Message{Channel: ch, Flags: flags, Payload: body}, nil
	}
	if len(body) < TypeSize {
		return nil, frameErrorf(FrameErrShort, "body of %d bytes has no type field", len(body))
	}
	return &Message{
		Channel: ch,
		Flags:   flags,
		Type:    binary.BigEndian.Uint16(body[:TypeSize]),
		Payload: body[TypeSize:],
	}, nil
}

// Body returns the plaintext body: type followed by payload.
func (m *Message) Body() []byte {
	if m.IsContinuation() {
		return m.Payload
	}
	body := make([]byte, TypeSize+len(m.Payload))
	binary.BigEndian.PutUint16(body[:TypeSize], m.Type)
	copy(body[TypeSize:], m.Payload)
	return body
}

// Len is the plaintext body length.
func (m *Message) Len() int {
	if m.IsContinuation() {
		return len(m.Payload)
	}
	return TypeSize + len(m.Payload)
}

// IsContinuation reports whether m is a middle or last fragment.
func (m *Message) IsContinuation() bool {
	return m.Flags&FlagFirst == 0
}

// Encrypted reports whether m travels encrypted.
func (m *Message) Encrypted() bool {
	return m.Flags&FlagEncrypted != 0
}

// String returns a debug representation of the message
func (m *Message) String() string {
	if m.IsContinuation() {
		return fmt.Sprintf("Message{channel=%s, flags=0x%02x, continuation, len=%d}", m.Channel, m.Flags, len(m.Payload))
	}
	return fmt.Sprintf("Message{channel=%s, flags=0x%02x, type=%s, len=%d}",
		m.Channel, m.Flags, TypeName(m.Channel, m.Type), len(m.Payload))
}
