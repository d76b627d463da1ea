package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipePort(t *testing.T) (*TCPPort, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	port := NewTCPPortFromConn(local)
	require.NoError(t, port.Connect(context.Background()))
	t.Cleanup(func() {
		_ = port.Disconnect()
		_ = remote.Close()
	})
	return port, remote
}

func TestTCPPortExactRead(t *testing.T) {
	port, remote := newPipePort(t)

	go func() {
		_, _ = remote.Write([]byte{1, 2})
		_, _ = remote.Write([]byte{3, 4, 5, 6})
	}()

	buf := make([]byte, 6)
	n, err := port.RecvBlocking(buf, time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, buf)
}

func TestTCPPortPartialRead(t *testing.T) {
	port, remote := newPipePort(t)

	go func() { _, _ = remote.Write([]byte{9, 8, 7}) }()

	buf := make([]byte, 64)
	n, err := port.RecvBlocking(buf, time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, buf[:n])
}

func TestTCPPortTimeout(t *testing.T) {
	port, _ := newPipePort(t)

	n, err := port.RecvBlocking(make([]byte, 4), 20*time.Millisecond, true)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTimeout(err))
}

func TestTCPPortShortExactRead(t *testing.T) {
	port, remote := newPipePort(t)

	go func() { _, _ = remote.Write([]byte{1, 2}) }()

	n, err := port.RecvBlocking(make([]byte, 4), 50*time.Millisecond, true)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestTCPPortEOF(t *testing.T) {
	port, remote := newPipePort(t)
	require.NoError(t, remote.Close())

	_, err := port.RecvBlocking(make([]byte, 4), time.Second, false)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTCPPortClosedReadsAsEOF(t *testing.T) {
	tests := []struct {
		name  string
		exact bool
		close func(local, remote net.Conn) error
	}{
		{name: "peer closed", close: func(_, remote net.Conn) error { return remote.Close() }},
		{name: "peer closed exact", exact: true, close: func(_, remote net.Conn) error { return remote.Close() }},
		{name: "conn closed underneath", close: func(local, _ net.Conn) error { return local.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, remote := net.Pipe()
			defer remote.Close()
			port := NewTCPPortFromConn(local)
			require.NoError(t, port.Connect(context.Background()))
			require.NoError(t, tt.close(local, remote))

			_, err := port.RecvBlocking(make([]byte, 4), time.Second, tt.exact)
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestTCPPortSend(t *testing.T) {
	port, remote := newPipePort(t)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 3)
		_, _ = io.ReadFull(remote, buf)
		got <- buf
	}()

	n, err := port.SendBlocking([]byte{0xA, 0xB, 0xC}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0xA, 0xB, 0xC}, <-got)
	assert.Equal(t, KindStream, port.Kind())
}

func TestTCPPortNotConnected(t *testing.T) {
	port := NewTCPPort("127.0.0.1:1")
	assert.False(t, port.IsConnected())

	_, err := port.SendBlocking([]byte{1}, time.Second)
	assert.True(t, errors.Is(err, ErrNotConnected))
	_, err = port.RecvBlocking(make([]byte, 1), time.Second, false)
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.NoError(t, port.Disconnect())
}

func TestTCPPortDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	port := NewTCPPort(ln.Addr().String())
	require.NoError(t, port.Connect(context.Background()))
	assert.True(t, port.IsConnected())

	conn := <-accepted
	defer conn.Close()

	_, err = conn.Write([]byte("hi"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = port.RecvBlocking(buf, time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf))

	require.NoError(t, port.Disconnect())
	assert.False(t, port.IsConnected())
}
