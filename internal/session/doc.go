// Package session runs one head unit connection to a phone.
//
// A Session is built from settings and a transport port, started once and
// ended either by the phone (bye-bye, native video takeover, end of stream)
// or by Stop. Start performs the cleartext version exchange, the TLS
// handshake and the status-OK message; afterwards a read goroutine feeds the
// inbound pipeline and a single writer goroutine sends every outbound
// message in order.
//
//	s, err := session.New(session.Config{
//		Settings: settings,
//		Port:     transport.NewTCPPort("192.168.1.20:5277"),
//		Video:    h264,
//		Audio:    player,
//	})
//	if err != nil {
//		return err
//	}
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	<-s.Done()
//
// Inbound messages are routed by channel and opcode. Video data is
// acknowledged per fragment and reassembled into whole frames, audio data is
// acknowledged and handed to the audio decoder, and control opcodes go to
// the handler of their channel. Sensor events may only be sent for sensors
// the phone started.
package session
