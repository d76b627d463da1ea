// Package transport provides the Port contract consumed by the session
// engine and two implementations of it.
//
// TCPPort carries the protocol over a TCP byte stream (the phone's head unit
// server, or a phone accepted by the listen server). WebSocketPort carries one
// frame per binary WebSocket message, which is how USB bridges and emulators
// expose the accessory endpoints.
//
// Every call is bounded by a timeout. Timeouts are reported as ErrTimeout and
// never close the port; io.EOF means the peer is gone.
package transport
