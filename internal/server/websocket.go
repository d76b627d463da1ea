package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 5 * time.Second,
	ReadBufferSize:   64 * 1024,
	WriteBufferSize:  64 * 1024,
	// Phones and bridges connect from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) newHTTPServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) serveWebSocket() error {
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// handleUpgrade upgrades the request and runs a session on the connection.
// Upgraded connections are hijacked, so the server tracks them itself.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.serve(transport.NewWebSocketPortFromConn(conn))
}
