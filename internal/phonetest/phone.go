// Package phonetest provides an in-process phone for exercising the head unit
// over a net.Conn, typically one end of net.Pipe.
//
// The phone speaks the real wire format: cleartext bootstrap frames, a
// crypto/tls server handshake carried in handshake frames, then encrypted
// frames in both directions.
package phonetest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
)

// DefaultTimeout bounds every phone read.
const DefaultTimeout = 5 * time.Second

// Phone is the far end of a head unit session.
type Phone struct {
	raw     net.Conn
	frames  *frameConn
	tls     *tls.Conn
	Timeout time.Duration

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// New wraps conn with a phone that presents a fresh self-signed certificate
// and requires a client certificate.
func New(conn net.Conn) (*Phone, error) {
	cert, err := serverCertificate()
	if err != nil {
		return nil, err
	}
	frames := &frameConn{Conn: conn}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,

		DynamicRecordSizingDisabled: true,
	}
	return &Phone{
		raw:     conn,
		frames:  frames,
		tls:     tls.Server(frames, cfg),
		Timeout: DefaultTimeout,
	}, nil
}

func serverCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "phone"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

// Connect runs the phone side of the bootstrap: version exchange, TLS
// handshake and the status-OK message.
func (p *Phone) Connect() error {
	if err := p.ExpectVersionRequest(); err != nil {
		return err
	}
	if err := p.SendVersionResponse(1, 7, 0); err != nil {
		return err
	}
	if err := p.Handshake(); err != nil {
		return err
	}
	return p.ExpectStatusOK()
}

// ReadCleartext reads one unencrypted frame.
func (p *Phone) ReadCleartext() (*protocol.Message, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()
	if err := p.raw.SetReadDeadline(time.Now().Add(p.Timeout)); err != nil {
		return nil, err
	}
	header, body, err := readFrame(p.raw)
	if err != nil {
		return nil, err
	}
	return protocol.ParseMessage(header.Channel, header.Flags, body)
}

// ExpectVersionRequest reads the head unit's version request.
func (p *Phone) ExpectVersionRequest() error {
	return p.expectCleartext(protocol.MsgVersionRequest)
}

// ExpectStatusOK reads the status-OK message sent after the handshake.
func (p *Phone) ExpectStatusOK() error {
	return p.expectCleartext(protocol.MsgAuthComplete)
}

func (p *Phone) expectCleartext(msgType uint16) error {
	msg, err := p.ReadCleartext()
	if err != nil {
		return err
	}
	if msg.Channel != protocol.ChannelControl || msg.Type != msgType {
		return fmt.Errorf("phonetest: got %s, want %s", msg, protocol.TypeName(protocol.ChannelControl, msgType))
	}
	return nil
}

// SendVersionResponse answers the version request.
func (p *Phone) SendVersionResponse(major, minor, status uint16) error {
	payload := make([]byte, 6)
	binary.BigEndian.PutUint16(payload[0:2], major)
	binary.BigEndian.PutUint16(payload[2:4], minor)
	binary.BigEndian.PutUint16(payload[4:6], status)
	return p.SendCleartext(protocol.ChannelControl, protocol.MsgVersionResponse, payload)
}

// SendCleartext writes an unencrypted frame.
func (p *Phone) SendCleartext(ch protocol.Channel, msgType uint16, payload []byte) error {
	frame, err := protocol.RawMessage(ch, protocol.FlagsBootstrap, msgType, payload)
	if err != nil {
		return err
	}
	return p.WriteRaw(frame)
}

// WriteRaw writes bytes to the wire unchanged.
func (p *Phone) WriteRaw(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.raw.SetWriteDeadline(time.Now().Add(p.Timeout)); err != nil {
		return err
	}
	_, err := p.raw.Write(b)
	return err
}

// Handshake runs the TLS server handshake.
func (p *Phone) Handshake() error {
	if err := p.raw.SetDeadline(time.Now().Add(p.Timeout)); err != nil {
		return err
	}
	if err := p.tls.Handshake(); err != nil {
		return fmt.Errorf("phonetest: handshake: %w", err)
	}
	p.frames.setEstablished()
	return p.raw.SetDeadline(time.Time{})
}

// PeerCertificates returns the certificate the head unit presented.
func (p *Phone) PeerCertificates() []*x509.Certificate {
	return p.tls.ConnectionState().PeerCertificates
}

// DidResume reports whether the handshake resumed an earlier session.
func (p *Phone) DidResume() bool {
	return p.tls.ConnectionState().DidResume
}

// Send encrypts one message with the flags the head unit would pick.
func (p *Phone) Send(ch protocol.Channel, msgType uint16, payload []byte) error {
	msg := protocol.NewMessage(ch, msgType, payload)
	return p.SendWithFlags(ch, msg.Flags, msg.Body(), 0)
}

// SendWithFlags encrypts body into one frame with explicit flags. A first
// fragment (flags 0x09) carries total as its 4-byte total size. Bodies over
// one record still go out as a single frame.
func (p *Phone) SendWithFlags(ch protocol.Channel, flags byte, body []byte, total uint32) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.raw.SetWriteDeadline(time.Now().Add(p.Timeout)); err != nil {
		return err
	}
	p.frames.begin(ch, flags, total)
	if _, err := p.tls.Write(body); err != nil {
		p.frames.end()
		return err
	}
	_, err := p.raw.Write(p.frames.end())
	return err
}

// Receive reads and decrypts one message.
func (p *Phone) Receive() (*protocol.Message, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()
	if err := p.raw.SetReadDeadline(time.Now().Add(p.Timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, protocol.MaxFrameSize)
	n, err := p.tls.Read(buf)
	if err != nil {
		return nil, err
	}
	// A frame may hold several records; tls.Read returns one at a time.
	for i := 1; i < p.frames.lastRecords(); i++ {
		m, err := p.tls.Read(buf[n:])
		if err != nil {
			return nil, err
		}
		n += m
	}
	header := p.frames.lastHeader()
	return protocol.ParseMessage(header.Channel, header.Flags, buf[:n])
}

// ReceiveType reads messages until one of the given type arrives on ch.
func (p *Phone) ReceiveType(ch protocol.Channel, msgType uint16) (*protocol.Message, error) {
	for {
		msg, err := p.Receive()
		if err != nil {
			return nil, err
		}
		if msg.Channel == ch && msg.Type == msgType {
			return msg, nil
		}
	}
}

// Close closes the phone's end of the connection.
func (p *Phone) Close() error {
	return p.raw.Close()
}

func readFrame(r io.Reader) (protocol.EncryptedHeader, []byte, error) {
	var prefix [protocol.EncryptedHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return protocol.EncryptedHeader{}, nil, err
	}
	header, err := protocol.DecodeEncryptedHeader(prefix[:])
	if err != nil {
		return header, nil, err
	}
	if header.HasTotalSize() {
		var total [protocol.TotalSizeFieldSize]byte
		if _, err := io.ReadFull(r, total[:]); err != nil {
			return header, nil, err
		}
	}
	body := make([]byte, header.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return header, nil, err
	}
	return header, body, nil
}

// frameConn carries the TLS server's byte stream inside protocol frames.
// Before the handshake completes every write becomes a cleartext handshake
// frame. Afterwards writes between begin and end are collected into one
// encrypted frame.
type frameConn struct {
	net.Conn

	mu          sync.Mutex
	established bool
	collecting  bool
	channel     protocol.Channel
	flags       byte
	total       uint32
	out         []byte
	pending     []byte
	last        protocol.EncryptedHeader
	records     int
}

func (c *frameConn) setEstablished() {
	c.mu.Lock()
	c.established = true
	c.mu.Unlock()
}

// begin starts collecting records for one frame.
func (c *frameConn) begin(ch protocol.Channel, flags byte, total uint32) {
	c.mu.Lock()
	c.channel, c.flags, c.total = ch, flags, total
	c.collecting = true
	c.out = nil
	c.mu.Unlock()
}

// end stops collecting and returns the framed records.
func (c *frameConn) end() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collecting = false
	body := c.out
	c.out = nil
	if c.flags != protocol.FlagsFragmented {
		frame, err := protocol.EncodeFrame(c.channel, c.flags, body)
		if err != nil {
			return nil
		}
		return frame
	}
	size := protocol.EncryptedHeaderSize + protocol.TotalSizeFieldSize
	frame := make([]byte, size, size+len(body))
	frame[0] = byte(c.channel)
	frame[1] = c.flags
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(body)))
	binary.BigEndian.PutUint32(frame[4:8], c.total)
	return append(frame, body...)
}

func (c *frameConn) lastHeader() protocol.EncryptedHeader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// lastRecords is the number of TLS records in the last frame body.
func (c *frameConn) lastRecords() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

func countRecords(body []byte) int {
	n := 0
	for len(body) >= 5 {
		size := 5 + int(binary.BigEndian.Uint16(body[3:5]))
		if size > len(body) {
			break
		}
		body = body[size:]
		n++
	}
	return n
}

func (c *frameConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		c.mu.Unlock()
		return n, nil
	}
	established := c.established
	c.mu.Unlock()

	header, body, err := readFrame(c.Conn)
	if err != nil {
		return 0, err
	}
	if !established {
		if header.Flags != protocol.FlagsBootstrap || len(body) < protocol.TypeSize ||
			binary.BigEndian.Uint16(body[:protocol.TypeSize]) != protocol.MsgTLSHandshake {
			return 0, errors.New("phonetest: expected a handshake frame")
		}
		body = body[protocol.TypeSize:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = header
	if established {
		c.records = countRecords(body)
	}
	n := copy(p, body)
	c.pending = body[n:]
	return n, nil
}

func (c *frameConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.collecting {
		c.out = append(c.out, p...)
		c.mu.Unlock()
		return len(p), nil
	}
	established := c.established
	c.mu.Unlock()

	if established {
		return 0, errors.New("phonetest: encrypted write outside SendWithFlags")
	}
	frame, err := protocol.HandshakeMessage(p)
	if err != nil {
		return 0, err
	}
	if _, err := c.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}
