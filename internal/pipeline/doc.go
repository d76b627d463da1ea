// Package pipeline turns transport reads into dispatched protocol messages.
//
// Two strategies implement Strategy and are picked by the port kind:
//
//   - SingleMessage reads exactly one frame per cycle. It suits ports that
//     deliver whole frames, such as WebSocket bridges.
//   - Streaming keeps a bounded FIFO, appends every physical read to it and
//     dispatches as many complete frames as it holds. The result does not
//     depend on where the stream was split.
//
// Framing faults never leave the pipeline: a malformed header resets the
// FIFO, an overflow resets it with a logged byte-loss count, and a frame that
// fails to decrypt is dropped. Only end of stream (StatusDisconnected) and a
// dispatcher asking to terminate (StatusTerminated) end the read loop.
package pipeline
