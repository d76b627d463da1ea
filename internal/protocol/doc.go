// Package protocol implements the wire format of the head unit protocol.
//
// This package handles the frame codec, the channel table, message opcodes and
// the protobuf-encoded payloads exchanged with the phone. It has no I/O and no
// state; the session package drives it.
//
// # Frame Format
//
// Every frame starts with a 4-byte prefix:
//   - Channel: 1 byte
//   - Flags: 1 byte (0x01 first, 0x02 last, 0x04 control, 0x08 encrypted)
//   - Body length: 2 bytes (big-endian)
//
// A first fragment (flags 0x09) carries an extra 4-byte total size before the
// body. The plaintext body starts with a 2-byte big-endian message type.
//
// Cleartext bootstrap frames are described by the 6-byte Header, whose length
// field counts the type as well as the payload:
//
//	header, _ := protocol.EncodeHeader(protocol.ChannelControl, protocol.FlagsBootstrap, protocol.MsgVersionRequest, 4)
//	// header[2:4] == {0x00, 0x06}
//
// # Payloads
//
// Control, media, sensor, input and playback payloads are protobuf messages.
// They are written with Builder and read with ParseFields, using the fixed
// field numbers of each message; no generated code is involved.
//
//	payload := protocol.PingResponse(ts)
//	msg := protocol.NewMessage(protocol.ChannelControl, protocol.MsgPingResponse, payload)
//
// # Error Handling
//
// Malformed frames are reported as *FrameError with a FrameErrorKind, so the
// read pipeline can tell a length fault (reset the buffer) from a short read.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
