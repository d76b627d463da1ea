// Package server accepts phone connections for head units that listen
// instead of dialing.
//
// Each accepted connection becomes a transport port handed to a
// SessionFactory. Only one session runs at a time; a phone that connects
// while another session is active is disconnected right away.
//
// # Transports
//
// By default the server accepts raw TCP and uses the streaming read
// strategy. With Config.WebSocket set it serves HTTP on the same listener
// and upgrades requests on Config.Path with gorilla/websocket; every binary
// message then carries one frame and the single-message strategy is used.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Port: 5277}, func(port transport.Port) (*session.Session, error) {
//	    return session.New(session.Config{Settings: settings, Port: port})
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until ctx is cancelled or a shutdown signal arrives
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Shutdown runs these steps:
//  1. Stop accepting new connections
//  2. Send bye-bye to the active phone and end its session
//  3. Wait for connection goroutines, bounded by the shutdown timeout
//  4. Force-close the remaining connection if the wait timed out
package server
