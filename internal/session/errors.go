package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned by sends on a session that is not running
	ErrNotRunning = errors.New("session: not running")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrStartAborted is returned by Start when Stop ran during the bootstrap
	ErrStartAborted = errors.New("session: stopped during start")
)

// FaultKind groups session faults by the layer that raised them.
type FaultKind int

const (
	// FaultTransport covers short reads and writes, timeouts and disconnects
	FaultTransport FaultKind = iota
	// FaultFraming covers bad lengths and buffer desync
	FaultFraming
	// FaultCrypto covers handshake and per-message encryption failures
	FaultCrypto
	// FaultProtocol covers unexpected opcodes, channels and version mismatches
	FaultProtocol
	// FaultControl covers deliberate terminations: bye-bye, native takeover
	FaultControl
)

func (k FaultKind) String() string {
	switch k {
	case FaultTransport:
		return "transport"
	case FaultFraming:
		return "framing"
	case FaultCrypto:
		return "crypto"
	case FaultProtocol:
		return "protocol"
	case FaultControl:
		return "control"
	default:
		return "unknown"
	}
}

// Fault is an error raised by a session operation.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s fault during %s", f.Kind, f.Op)
	}
	return fmt.Sprintf("%s fault during %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches a *Fault of the same kind, so callers can test
// errors.Is(err, &Fault{Kind: FaultCrypto}).
func (f *Fault) Is(target error) bool {
	var other *Fault
	if !errors.As(target, &other) {
		return false
	}
	return other.Op == "" && other.Err == nil && other.Kind == f.Kind
}

func newFault(kind FaultKind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first Fault in err's chain.
func KindOf(err error) (FaultKind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// Termination reasons reported to the listener.
var (
	// ErrByeBye means the phone or the head unit ended the session
	ErrByeBye = errors.New("bye-bye")
	// ErrNativeTakeover means the phone returned the display to native UI
	ErrNativeTakeover = errors.New("native video focus takeover")
	// ErrPeerClosed means the transport reached end of stream
	ErrPeerClosed = errors.New("peer closed the connection")
)
