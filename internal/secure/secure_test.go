package secure

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/phonetest"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

const testTimeout = 5 * time.Second

var (
	identityOnce sync.Once
	identity     *Identity
	identityErr  error
)

func testIdentity(t *testing.T) *Identity {
	t.Helper()
	identityOnce.Do(func() {
		identity, identityErr = GenerateIdentity(DefaultCertParams())
	})
	require.NoError(t, identityErr)
	return identity
}

func newPhonePair(t *testing.T) (*transport.TCPPort, *phonetest.Phone) {
	t.Helper()
	local, remote := net.Pipe()
	port := transport.NewTCPPortFromConn(local)
	require.NoError(t, port.Connect(context.Background()))
	phone, err := phonetest.New(remote)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = port.Disconnect()
		_ = phone.Close()
	})
	return port, phone
}

func handshake(t *testing.T, ch Channel) (*transport.TCPPort, *phonetest.Phone) {
	t.Helper()
	port, phone := newPhonePair(t)

	errc := make(chan error, 1)
	go func() { errc <- phone.Handshake() }()

	require.NoError(t, ch.PerformHandshake(port, testTimeout))
	require.NoError(t, <-errc)
	ch.ResetBuffers()
	return port, phone
}

func engines() []string {
	return []string{config.EngineSession, config.EngineEngine}
}

func newChannel(t *testing.T, name string) Channel {
	t.Helper()
	ch, err := New(name, testIdentity(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// readFrame reads one encrypted frame from the head unit side of the pipe.
func readFrame(t *testing.T, port transport.Port) (protocol.EncryptedHeader, []byte) {
	t.Helper()
	prefix := make([]byte, protocol.EncryptedHeaderSize)
	_, err := port.RecvBlocking(prefix, testTimeout, true)
	require.NoError(t, err)
	header, err := protocol.DecodeEncryptedHeader(prefix)
	require.NoError(t, err)
	body := make([]byte, header.Length)
	_, err = port.RecvBlocking(body, testTimeout, true)
	require.NoError(t, err)
	return header, body
}

func TestNew(t *testing.T) {
	id := testIdentity(t)

	ch, err := New(config.EngineSession, id)
	require.NoError(t, err)
	assert.Equal(t, "session", ch.Name())

	ch, err = New("", id)
	require.NoError(t, err)
	assert.Equal(t, "session", ch.Name())

	ch, err = New(config.EngineEngine, id)
	require.NoError(t, err)
	assert.Equal(t, "engine", ch.Name())

	_, err = New("openssl", id)
	assert.Error(t, err)

	_, err = New(config.EngineSession, nil)
	assert.Error(t, err)
}

func TestHandshake(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)
			_, phone := handshake(t, ch)

			state := ch.ConnectionState()
			assert.True(t, state.HandshakeComplete)
			assert.Equal(t, uint16(tls.VersionTLS12), state.Version)
			assert.False(t, state.DidResume)

			peers := phone.PeerCertificates()
			require.Len(t, peers, 1)
			assert.Equal(t, "Headunit", peers[0].Subject.CommonName)
		})
	}
}

func TestHandshakeNeverResumes(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)

			_, first := handshake(t, ch)
			assert.False(t, first.DidResume())

			_, second := handshake(t, ch)
			assert.False(t, second.DidResume())
			assert.False(t, ch.ConnectionState().DidResume)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)
			port, phone := handshake(t, ch)

			// head unit -> phone
			msg := protocol.NewMessage(protocol.ChannelControl, protocol.MsgPingResponse, []byte{0x08, 0x2a})
			ciphertext, err := ch.Encrypt(msg.Body())
			require.NoError(t, err)
			frame, err := protocol.EncodeFrame(msg.Channel, msg.Flags, ciphertext)
			require.NoError(t, err)

			go func() { _, _ = port.SendBlocking(frame, testTimeout) }()
			got, err := phone.Receive()
			require.NoError(t, err)
			assert.Equal(t, protocol.ChannelControl, got.Channel)
			assert.Equal(t, protocol.MsgPingResponse, got.Type)
			assert.Equal(t, []byte{0x08, 0x2a}, got.Payload)

			// phone -> head unit
			payload := bytes.Repeat([]byte{0xab}, 3000)
			data := protocol.Message{Channel: protocol.ChannelVideo, Flags: protocol.FlagsSingle, Type: protocol.MsgMediaData, Payload: payload}
			go func() { _ = phone.SendWithFlags(data.Channel, data.Flags, data.Body(), 0) }()

			header, body := readFrame(t, port)
			assert.Equal(t, protocol.ChannelVideo, header.Channel)
			assert.Equal(t, protocol.FlagsSingle, header.Flags)
			plaintext, err := ch.Decrypt(body)
			require.NoError(t, err)
			in, err := protocol.ParseMessage(header.Channel, header.Flags, plaintext)
			require.NoError(t, err)
			assert.Equal(t, protocol.MsgMediaData, in.Type)
			assert.Equal(t, payload, in.Payload)
		})
	}
}

// phoneFrames has the phone send one message per payload and returns the
// encrypted bodies as they arrive at the head unit.
func phoneFrames(t *testing.T, port transport.Port, phone *phonetest.Phone, payloads ...[]byte) [][]byte {
	t.Helper()
	go func() {
		for _, p := range payloads {
			if err := phone.Send(protocol.ChannelSensor, protocol.MsgSensorStartRequest, p); err != nil {
				return
			}
		}
	}()
	bodies := make([][]byte, 0, len(payloads))
	for range payloads {
		_, body := readFrame(t, port)
		bodies = append(bodies, body)
	}
	return bodies
}

func decryptSensorStart(t *testing.T, ch Channel, body []byte) []byte {
	t.Helper()
	plaintext, err := ch.Decrypt(body)
	require.NoError(t, err)
	msg, err := protocol.ParseMessage(protocol.ChannelSensor, protocol.FlagsSingle, plaintext)
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgSensorStartRequest, msg.Type)
	return msg.Payload
}

func TestDecryptIncompleteRecord(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)
			port, phone := handshake(t, ch)
			bodies := phoneFrames(t, port, phone, []byte{0x08, 0x0d}, []byte{0x08, 0x0a})

			for _, cut := range []int{3, recordHeaderSize, len(bodies[0]) / 2, len(bodies[0]) - 1} {
				_, err := ch.Decrypt(bodies[0][:cut])
				assert.ErrorIs(t, err, ErrIncompleteRecord, "cut at %d", cut)
			}

			// Rejected bodies leave nothing behind for the next call.
			assert.Equal(t, []byte{0x08, 0x0d}, decryptSensorStart(t, ch, bodies[0]))
			assert.Equal(t, []byte{0x08, 0x0a}, decryptSensorStart(t, ch, bodies[1]))

			_, err := ch.Encrypt([]byte{0x00, 0x0b})
			assert.NoError(t, err)
		})
	}
}

func TestDecryptMalformedRecord(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "garbage", body: bytes.Repeat([]byte{0xff}, 32)},
		{name: "handshake record", body: []byte{22, 0x03, 0x03, 0x00, 0x03, 0x01, 0x02, 0x03}},
		{name: "tls 1.0 record", body: []byte{23, 0x03, 0x01, 0x00, 0x03, 0x01, 0x02, 0x03}},
		{name: "empty record", body: []byte{23, 0x03, 0x03, 0x00, 0x00}},
		{name: "trailing bytes", body: []byte{23, 0x03, 0x03, 0x00, 0x01, 0x01, 0x17}},
	}

	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)
			port, phone := handshake(t, ch)
			bodies := phoneFrames(t, port, phone, []byte{0x08, 0x0d})

			for _, tt := range tests {
				_, err := ch.Decrypt(tt.body)
				assert.Error(t, err, tt.name)
				assert.NotErrorIs(t, err, ErrChannelBroken, tt.name)
			}

			assert.Equal(t, []byte{0x08, 0x0d}, decryptSensorStart(t, ch, bodies[0]))
		})
	}
}

func TestDecryptForgedRecordBreaksChannel(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)
			port, phone := handshake(t, ch)
			bodies := phoneFrames(t, port, phone, []byte{0x08, 0x0d})

			forged := bytes.Clone(bodies[0])
			forged[len(forged)-1] ^= 0xff
			_, err := ch.Decrypt(forged)
			require.ErrorIs(t, err, ErrChannelBroken)

			_, err = ch.Decrypt(bodies[0])
			assert.ErrorIs(t, err, ErrChannelBroken)
			_, err = ch.Encrypt([]byte{0x00, 0x0b})
			assert.ErrorIs(t, err, ErrChannelBroken)
		})
	}
}

func TestEncryptBeforeHandshake(t *testing.T) {
	for _, name := range engines() {
		t.Run(name, func(t *testing.T) {
			ch := newChannel(t, name)

			_, err := ch.Encrypt([]byte("hello"))
			assert.ErrorIs(t, err, ErrNotEstablished)

			_, err = ch.Decrypt([]byte("hello"))
			assert.ErrorIs(t, err, ErrNotEstablished)
		})
	}
}

func TestHandshakeFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(phone *phonetest.Phone) error
	}{
		{
			name: "garbage server flight",
			reply: func(phone *phonetest.Phone) error {
				return phone.SendCleartext(protocol.ChannelControl, protocol.MsgTLSHandshake, bytes.Repeat([]byte{0xff}, 32))
			},
		},
		{
			name: "wrong message type",
			reply: func(phone *phonetest.Phone) error {
				return phone.SendVersionResponse(1, 7, 0)
			},
		},
		{
			name: "wrong channel",
			reply: func(phone *phonetest.Phone) error {
				return phone.SendCleartext(protocol.ChannelSensor, protocol.MsgTLSHandshake, []byte{0x16, 0x03, 0x03})
			},
		},
		{
			name: "no reply",
			reply: func(*phonetest.Phone) error {
				return nil
			},
		},
	}

	for _, name := range engines() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				ch := newChannel(t, name)
				port, phone := newPhonePair(t)

				go func() {
					if _, err := phone.ReadCleartext(); err != nil {
						return
					}
					_ = tt.reply(phone)
				}()

				err := ch.PerformHandshake(port, 200*time.Millisecond)
				assert.ErrorIs(t, err, ErrHandshakeFailed)

				_, err = ch.Encrypt([]byte("hello"))
				assert.Error(t, err)
			})
		}
	}
}

func TestEngineStatusSequence(t *testing.T) {
	engine := NewEngine(testIdentity(t))
	assert.Equal(t, NotHandshaking, engine.HandshakeStatus())

	engine.BeginHandshake()
	assert.Equal(t, NeedTask, engine.HandshakeStatus())

	task := engine.DelegatedTask()
	require.NotNil(t, task)
	task()
	assert.Equal(t, NeedWrap, engine.HandshakeStatus())
	assert.Nil(t, engine.DelegatedTask())

	res, hello, err := engine.Wrap(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, NeedUnwrap, res.Handshake)
	assert.Equal(t, len(hello), res.Produced)
	require.NotEmpty(t, hello)
	assert.Equal(t, byte(0x16), hello[0], "ClientHello is a handshake record")

	require.NoError(t, engine.core.close())
}
