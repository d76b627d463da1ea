package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/phonetest"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/secure"
	"github.com/tsabaia/headunit-revived-sub000/internal/session"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

const testTimeout = 5 * time.Second

var (
	identityOnce sync.Once
	identity     *secure.Identity
	identityErr  error
)

func testFactory(t *testing.T) SessionFactory {
	t.Helper()
	identityOnce.Do(func() {
		identity, identityErr = secure.GenerateIdentity(secure.DefaultCertParams())
	})
	require.NoError(t, identityErr)

	return func(port transport.Port) (*session.Session, error) {
		return session.New(session.Config{
			Settings:    config.NewSettings(),
			Port:        port,
			Identity:    identity,
			ByeByeDelay: 20 * time.Millisecond,
		})
	}
}

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	cfg.Host = "127.0.0.1"
	srv, err := New(cfg, testFactory(t))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(testTimeout):
			t.Error("server did not stop")
		}
	})
	return srv
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, testFactory(t))
	assert.Error(t, err)
	_, err = New(&Config{}, nil)
	assert.Error(t, err)

	srv, err := New(&Config{}, testFactory(t))
	require.NoError(t, err)
	assert.Nil(t, srv.Addr())
	assert.Nil(t, srv.ActiveSession())
}

func TestServeTCP(t *testing.T) {
	srv := startServer(t, &Config{ShutdownTimeout: 2 * time.Second})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	phone, err := phonetest.New(conn)
	require.NoError(t, err)
	defer phone.Close()
	require.NoError(t, phone.Connect())

	require.Eventually(t, func() bool {
		s := srv.ActiveSession()
		return s != nil && s.Alive()
	}, testTimeout, 10*time.Millisecond)

	require.NoError(t, phone.Send(protocol.ChannelControl, protocol.MsgPingRequest, protocol.NewBuilder().Int(1, 77).Encode()))
	msg, err := phone.ReceiveType(protocol.ChannelControl, protocol.MsgPingResponse)
	require.NoError(t, err)
	assert.Equal(t, protocol.PingResponse(77), msg.Payload)

	// A second phone is turned away while the first session runs.
	second, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(testTimeout)))
	_, err = second.Read(make([]byte, 1))
	assert.Error(t, err)

	// Shutdown says bye-bye to the active phone.
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- srv.Shutdown(context.Background()) }()
	_, err = phone.ReceiveType(protocol.ChannelControl, protocol.MsgByeByeRequest)
	require.NoError(t, err)
	require.NoError(t, <-shutdownErr)
	assert.Nil(t, srv.ActiveSession())
}

func TestServeTCPNextPhoneAfterDisconnect(t *testing.T) {
	srv := startServer(t, &Config{})

	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		phone, err := phonetest.New(conn)
		require.NoError(t, err)
		require.NoError(t, phone.Connect())
		require.Eventually(t, func() bool { return srv.ActiveSession() != nil }, testTimeout, 10*time.Millisecond)

		require.NoError(t, phone.Close())
		require.Eventually(t, func() bool { return srv.ActiveSession() == nil }, testTimeout, 10*time.Millisecond)
	}
}

func TestServeWebSocket(t *testing.T) {
	srv := startServer(t, &Config{WebSocket: true, Path: "/aa"})

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String()+"/aa", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// The session opens with the cleartext version request in one message.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, protocol.VersionRequest(), data)
}
