package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWebSocketServer upgrades each connection and hands it to serve.
func newWebSocketServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketPortMessages(t *testing.T) {
	url := newWebSocketServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4, 5, 6})
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{7, 8})
		_, data, err := conn.ReadMessage()
		if err == nil {
			_ = conn.WriteMessage(websocket.BinaryMessage, data)
		}
		_, _, _ = conn.ReadMessage()
	})

	port := NewWebSocketPort(url)
	require.NoError(t, port.Connect(context.Background()))
	defer port.Disconnect()
	assert.Equal(t, KindMessage, port.Kind())

	// exact read spanning a message boundary keeps the tail
	head := make([]byte, 4)
	_, err := port.RecvBlocking(head, time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, head)

	rest := make([]byte, 4)
	_, err = port.RecvBlocking(rest, time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, rest)

	_, err = port.SendBlocking([]byte("echo"), time.Second)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := port.RecvBlocking(buf, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "echo", string(buf[:n]))
}

func TestWebSocketPortTimeout(t *testing.T) {
	url := newWebSocketServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	port := NewWebSocketPort(url)
	require.NoError(t, port.Connect(context.Background()))
	defer port.Disconnect()

	_, err := port.RecvBlocking(make([]byte, 4), 20*time.Millisecond, true)
	assert.ErrorIs(t, err, ErrTimeout)

	// a timeout does not poison the connection
	assert.True(t, port.IsConnected())
}

func TestWebSocketPortPeerClose(t *testing.T) {
	url := newWebSocketServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	port := NewWebSocketPort(url)
	require.NoError(t, port.Connect(context.Background()))
	defer port.Disconnect()

	_, err := port.RecvBlocking(make([]byte, 4), time.Second, false)
	assert.ErrorIs(t, err, io.EOF)
}
