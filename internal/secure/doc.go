// Package secure implements the TLS layer of a head unit session.
//
// The head unit is the TLS client. Handshake records travel inside cleartext
// control frames (type 3) and application records inside encrypted frames,
// so the TLS stack never touches the transport directly: it runs over an
// in-memory connection and the caller moves bytes between it and the frame
// codec.
//
// Two engines are available behind the Channel interface:
//
//	session  alternating HandshakeRead/HandshakeWrite calls (the default)
//	engine   wrap/unwrap calls with delegated tasks
//
// Both negotiate TLS 1.2, present the head unit certificate without being
// asked twice, accept any phone certificate and never resume a session.
//
// Basic usage:
//
//	id, err := secure.IdentityFromSettings(settings.Security)
//	ch, err := secure.New(settings.Security.Engine, id)
//	if err := ch.PerformHandshake(port, timeout); err != nil {
//		return err
//	}
//	ch.ResetBuffers()
//	ciphertext, err := ch.Encrypt(body)
package secure
