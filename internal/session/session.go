package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/media"
	"github.com/tsabaia/headunit-revived-sub000/internal/pipeline"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/secure"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Default timings
const (
	DefaultByeByeDelay       = 250 * time.Millisecond
	DefaultJoinTimeout       = time.Second
	DefaultVersionRetryDelay = 250 * time.Millisecond

	outboxSize = 256
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateRunning
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds a session's settings and collaborators. Only Settings and
// Port are required.
type Config struct {
	Settings *config.Settings
	Port     transport.Port

	// Channel overrides the TLS engine picked from Settings.Security.
	Channel secure.Channel
	// Identity is the client certificate; generated when nil.
	Identity *secure.Identity

	Video      media.VideoDecoder
	Audio      media.AudioDecoder
	Microphone media.Microphone
	Focus      media.FocusArbiter
	Listener   Listener

	ByeByeDelay       time.Duration
	JoinTimeout       time.Duration
	VersionRetryDelay time.Duration
	Pipeline          []pipeline.Option
}

// Session is one connection to a phone: bootstrap, then a read loop and a
// writer loop until either side ends it.
type Session struct {
	settings *config.Settings
	port     transport.Port
	channel  secure.Channel
	manifest *protocol.ServiceDiscoveryResponse

	video    media.VideoDecoder
	audio    media.AudioDecoder
	mic      media.Microphone
	focus    media.FocusArbiter
	listener Listener

	byeByeDelay       time.Duration
	joinTimeout       time.Duration
	versionRetryDelay time.Duration
	pipelineOpts      []pipeline.Option

	state atomic.Int32
	alive atomic.Bool

	startMu    sync.Mutex
	abortStart context.CancelCauseFunc

	ctx        context.Context
	cancel     context.CancelFunc
	outbox     chan outbound
	readerDone chan struct{}
	writerDone chan struct{}
	tasks      sync.WaitGroup
	strategy   pipeline.Strategy

	done   chan struct{}
	reason error

	// Owned by the dispatch path.
	sessionIDs    map[protocol.Channel]int32
	codecs        map[protocol.Channel]protocol.MediaCodec
	audioStarted  map[protocol.Channel]bool
	reassembler   reassembler
	micOpen       bool
	terminateWith error

	sensorMu       sync.Mutex
	startedSensors map[protocol.SensorType]bool

	ignoreNextStop  atomic.Bool
	quittingAllowed atomic.Bool
	night           atomic.Bool

	stats counters
}

// New validates cfg and builds an idle session.
func New(cfg Config) (*Session, error) {
	if cfg.Settings == nil {
		return nil, errors.New("session: settings are required")
	}
	if cfg.Port == nil {
		return nil, errors.New("session: port is required")
	}
	manifest, err := BuildManifest(cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("session: build manifest: %w", err)
	}

	channel := cfg.Channel
	if channel == nil {
		id := cfg.Identity
		if id == nil {
			if id, err = secure.IdentityFromSettings(cfg.Settings.Security); err != nil {
				return nil, err
			}
		}
		if channel, err = secure.New(cfg.Settings.Security.Engine, id); err != nil {
			return nil, err
		}
	}

	s := &Session{
		settings:          cfg.Settings,
		port:              cfg.Port,
		channel:           channel,
		manifest:          manifest,
		video:             cfg.Video,
		audio:             cfg.Audio,
		mic:               cfg.Microphone,
		focus:             cfg.Focus,
		listener:          cfg.Listener,
		byeByeDelay:       orDuration(cfg.ByeByeDelay, DefaultByeByeDelay),
		joinTimeout:       orDuration(cfg.JoinTimeout, DefaultJoinTimeout),
		versionRetryDelay: orDuration(cfg.VersionRetryDelay, DefaultVersionRetryDelay),
		pipelineOpts:      cfg.Pipeline,
		done:              make(chan struct{}),
		sessionIDs:        make(map[protocol.Channel]int32),
		codecs:            make(map[protocol.Channel]protocol.MediaCodec),
		audioStarted:      make(map[protocol.Channel]bool),
		startedSensors:    make(map[protocol.SensorType]bool),
	}
	if s.video == nil || s.audio == nil {
		discard := media.Discard{}
		if s.video == nil {
			s.video = discard
		}
		if s.audio == nil {
			s.audio = discard
		}
	}
	if s.focus == nil {
		s.focus = media.AlwaysGrant{}
	}
	if s.listener == nil {
		s.listener = NopListener{}
	}
	s.quittingAllowed.Store(true)
	return s, nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// Manifest returns the capability manifest offered to the phone.
func (s *Session) Manifest() *protocol.ServiceDiscoveryResponse {
	return s.manifest
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Alive reports whether the session accepts outgoing messages.
func (s *Session) Alive() bool {
	return s.alive.Load()
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the termination reason once Done is closed. It is nil for a
// local Stop.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.reason
	default:
		return nil
	}
}

// Start connects the port, runs the bootstrap and starts the read and write
// loops. On failure nothing is left running and the port is disconnected. A
// Stop during the bootstrap makes Start return ErrStartAborted.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.startMu.Lock()
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		s.startMu.Unlock()
		return ErrAlreadyStarted
	}
	s.abortStart = cancel
	s.startMu.Unlock()

	err := s.bootstrap(ctx)

	s.startMu.Lock()
	s.abortStart = nil
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrStartAborted) {
			err = ErrStartAborted
		}
		s.startMu.Unlock()
		s.failStart(err)
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.outbox = make(chan outbound, outboxSize)
	s.readerDone = make(chan struct{})
	s.writerDone = make(chan struct{})
	s.strategy = pipeline.New(s.port.Kind(), s.channel, pipeline.DispatchFunc(s.dispatch), s.pipelineOpts...)

	s.alive.Store(true)
	s.state.Store(int32(StateRunning))
	s.startMu.Unlock()

	go s.writeLoop()
	go s.readLoop()

	logging.Info("Session started",
		zap.String("remote_addr", s.port.RemoteAddr()),
		zap.String("engine", s.channel.Name()),
		zap.String("strategy", s.strategy.Name()),
	)
	s.listener.Connected(s.port.RemoteAddr())
	return nil
}

func (s *Session) failStart(err error) {
	logging.Error("Session start failed", zap.String("remote_addr", s.port.RemoteAddr()), zap.Error(err))
	_ = s.port.Disconnect()
	_ = s.channel.Close()
	s.reason = err
	s.state.Store(int32(StateClosed))
	close(s.done)
}

func (s *Session) bootstrap(ctx context.Context) error {
	if err := s.port.Connect(ctx); err != nil {
		return newFault(FaultTransport, "connect", err)
	}
	if err := s.exchangeVersion(ctx); err != nil {
		return err
	}
	if err := s.channel.PerformHandshake(s.port, s.settings.Transport.HandshakeTimeout); err != nil {
		return newFault(FaultCrypto, "handshake", err)
	}
	s.channel.ResetBuffers()

	logging.LogFrame("send", protocol.ChannelControl.String(), protocol.FlagsBootstrap, protocol.MsgAuthComplete, 2)
	if _, err := s.port.SendBlocking(protocol.StatusOKMessage(), s.settings.Transport.HandshakeTimeout); err != nil {
		return newFault(FaultTransport, "status ok", err)
	}
	return nil
}

func (s *Session) readLoop() {
	status := pipeline.Run(s.ctx, s.port, s.strategy)
	close(s.readerDone)

	switch status {
	case pipeline.StatusDisconnected:
		s.quit(ErrPeerClosed)
	case pipeline.StatusBroken:
		s.quit(newFault(FaultCrypto, "decrypt", secure.ErrChannelBroken))
	case pipeline.StatusTerminated:
		reason := s.terminateWith
		if reason == nil {
			reason = ErrByeBye
		}
		s.quit(reason)
	}
}

// Stop sends a bye-bye request, gives the phone a moment to answer and
// tears the session down. During the bootstrap it aborts Start instead.
func (s *Session) Stop() error {
	s.startMu.Lock()
	abort := s.abortStart
	s.startMu.Unlock()
	if abort != nil {
		abort(ErrStartAborted)
		// Bootstrap reads only return on timeout or a closed port.
		_ = s.port.Disconnect()
		<-s.done
		return nil
	}

	if s.alive.Load() {
		if err := s.sendWait(protocol.NewMessage(protocol.ChannelControl, protocol.MsgByeByeRequest,
			protocol.ByeByeRequest(protocol.ByeByeReasonQuit))); err != nil {
			logging.Warn("Bye-bye request not sent", zap.Error(err))
		}
		select {
		case <-s.done:
		case <-time.After(s.byeByeDelay):
		}
	}
	s.quit(nil)
	if s.State() >= StateStopping {
		<-s.done
	}
	return nil
}

// quit stops both loops, clears per-session state and notifies the
// listener. Only the call that moves a running session to stopping has any
// effect; it never waits for a teardown started elsewhere.
func (s *Session) quit(reason error) {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	s.alive.Store(false)
	s.cancel()

	var errs error
	errs = multierr.Append(errs, s.port.Disconnect())
	s.join("reader", s.readerDone)
	s.join("writer", s.writerDone)
	tasksDone := make(chan struct{})
	go func() {
		s.tasks.Wait()
		close(tasksDone)
	}()
	s.join("tasks", tasksDone)

	if s.micOpen && s.mic != nil {
		errs = multierr.Append(errs, s.mic.Stop())
	}
	for ch := range s.audioStarted {
		errs = multierr.Append(errs, s.audio.StopAudio(ch))
	}
	errs = multierr.Append(errs, s.channel.Close())
	s.resetState()

	if errs != nil {
		logging.Warn("Session teardown reported errors", zap.Error(errs))
	}
	logging.Info("Session ended",
		zap.String("remote_addr", s.port.RemoteAddr()),
		zap.NamedError("reason", reason),
	)

	s.reason = reason
	s.listener.Disconnected(reason)
	s.state.Store(int32(StateClosed))
	close(s.done)
}

func (s *Session) join(name string, done <-chan struct{}) {
	select {
	case <-done:
	case <-time.After(s.joinTimeout):
		logging.Warn("Session goroutine did not stop in time",
			zap.String("goroutine", name),
			zap.Duration("timeout", s.joinTimeout),
		)
	}
}

func (s *Session) resetState() {
	s.sessionIDs = make(map[protocol.Channel]int32)
	s.codecs = make(map[protocol.Channel]protocol.MediaCodec)
	s.audioStarted = make(map[protocol.Channel]bool)
	s.reassembler.reset()
	s.micOpen = false

	s.sensorMu.Lock()
	s.startedSensors = make(map[protocol.SensorType]bool)
	s.sensorMu.Unlock()
}

// SetBackgrounded tells the session whether the host UI is hidden. While
// backgrounded, video stops from the phone do not end the session.
func (s *Session) SetBackgrounded(backgrounded bool) {
	s.quittingAllowed.Store(!backgrounded)
}

// ForceKeyframe makes the phone restart its encoder by toggling video focus.
// The stop this causes is swallowed.
func (s *Session) ForceKeyframe() error {
	if !s.alive.Load() {
		return ErrNotRunning
	}
	s.ignoreNextStop.Store(true)
	if err := s.send(protocol.NewMessage(protocol.ChannelVideo, protocol.MsgVideoFocusNotification,
		protocol.VideoFocusNotification(protocol.VideoFocusNative, true))); err != nil {
		return err
	}
	return s.send(protocol.NewMessage(protocol.ChannelVideo, protocol.MsgVideoFocusNotification,
		protocol.VideoFocusNotification(protocol.VideoFocusProjected, true)))
}
