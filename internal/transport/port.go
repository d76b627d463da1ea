package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// Kind tells the read pipeline how bytes arrive.
type Kind int

const (
	// KindMessage ports deliver one protocol frame per physical read.
	KindMessage Kind = iota
	// KindStream ports deliver an arbitrary byte stream.
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned by I/O on a port that is not connected
	ErrNotConnected = errors.New("transport: not connected")
	// ErrTimeout is returned when a blocking call ran out of time
	ErrTimeout = errors.New("transport: timeout")
	// ErrShortRead is returned by exact reads that got fewer bytes than asked
	ErrShortRead = errors.New("transport: short read")
)

// Port is a duplex byte channel with bounded blocking calls.
//
// RecvBlocking with exact set fails unless len(buf) bytes were read. io.EOF
// means the peer closed the stream and the session must end.
type Port interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	SendBlocking(buf []byte, timeout time.Duration) (int, error)
	RecvBlocking(buf []byte, timeout time.Duration, exact bool) (int, error)
	Kind() Kind
	RemoteAddr() string
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
