package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/session"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no
// deadline.
const DefaultShutdownTimeout = 10 * time.Second

// ErrBusy is logged when a phone connects while another session runs.
var ErrBusy = errors.New("server: a session is already active")

// SessionFactory builds the session for an accepted phone connection.
type SessionFactory func(port transport.Port) (*session.Session, error)

// Config holds the server configuration
type Config struct {
	Host string
	Port int
	// WebSocket accepts WebSocket upgrades on Path instead of raw TCP.
	WebSocket bool
	Path      string
	// ShutdownTimeout overrides DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Server accepts phones that connect to the head unit and runs one session
// at a time.
type Server struct {
	config   *Config
	factory  SessionFactory
	listener net.Listener
	http     *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active *activeSession
}

type activeSession struct {
	remote  string
	port    transport.Port
	session *session.Session
}

// New creates a new Server instance
func New(config *Config, factory SessionFactory) (*Server, error) {
	if config == nil {
		return nil, errors.New("server: config is required")
	}
	if factory == nil {
		return nil, errors.New("server: session factory is required")
	}
	if config.Path == "" {
		config.Path = "/"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:  config,
		factory: factory,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Listen binds the listening socket. Start calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, a shutdown signal arrives or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	logging.Info("Head unit listening for phones",
		zap.String("addr", s.listener.Addr().String()),
		zap.Bool("websocket", s.config.WebSocket),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	if s.config.WebSocket {
		s.http = s.newHTTPServer()
		go func() { errChan <- s.serveWebSocket() }()
	} else {
		go func() { errChan <- s.acceptConnections() }()
	}

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// acceptConnections accepts and handles incoming connections
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(transport.NewTCPPortFromConn(conn))
		}()
	}
}

// serve runs one session on port until it ends or the server shuts down.
func (s *Server) serve(port transport.Port) {
	remote := port.RemoteAddr()
	logging.LogConnection(remote, "connection_accepted")

	if !s.claim(remote, port) {
		logging.Warn("Rejecting phone connection", zap.String("remote_addr", remote), zap.Error(ErrBusy))
		_ = port.Disconnect()
		return
	}
	defer s.release()

	sess, err := s.factory(port)
	if err != nil {
		logging.Error("Failed to create session", zap.String("remote_addr", remote), zap.Error(err))
		_ = port.Disconnect()
		return
	}
	s.mu.Lock()
	s.active.session = sess
	s.mu.Unlock()

	// Bootstrap reads block until the handshake timeout; cut them short on
	// shutdown.
	stop := context.AfterFunc(s.ctx, func() { _ = port.Disconnect() })
	err = sess.Start(s.ctx)
	stop()
	if err != nil {
		return
	}
	select {
	case <-sess.Done():
	case <-s.ctx.Done():
		_ = sess.Stop()
	}
	logging.Info("Phone session finished",
		zap.String("remote_addr", remote),
		zap.NamedError("reason", sess.Err()),
	)
}

func (s *Server) claim(remote string, port transport.Port) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil || s.ctx.Err() != nil {
		return false
	}
	s.active = &activeSession{remote: remote, port: port}
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// ActiveSession returns the running session, if any.
func (s *Server) ActiveSession() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.active.session
}

// Shutdown stops accepting phones, ends the active session and waits for
// connection goroutines, bounded by ctx and the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.cancel()

	var errs error
	if s.http != nil {
		closeCtx, cancel := context.WithTimeout(ctx, time.Second)
		errs = multierr.Append(errs, s.http.Shutdown(closeCtx))
		cancel()
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierr.Append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		errs = multierr.Append(errs, s.forceClose())
	case <-time.After(timeout):
		logging.Warn("Shutdown timeout, forcing close", zap.Duration("timeout", timeout))
		errs = multierr.Append(errs, s.forceClose())
	}

	logging.Sync()
	return errs
}

func (s *Server) forceClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	logging.Info("Closing active connection", zap.String("remote_addr", s.active.remote))
	return s.active.port.Disconnect()
}
