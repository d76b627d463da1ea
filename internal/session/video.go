package session

import (
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

// reassembler joins fragmented video frames. A frame never spans a reset.
type reassembler struct {
	buf    []byte
	active bool
}

// push feeds the data of one video message and returns a complete frame
// when flags close one.
func (r *reassembler) push(flags byte, data []byte) ([]byte, bool) {
	switch flags {
	case protocol.FlagsSingle:
		r.reset()
		return data, true

	case protocol.FlagsFragmented:
		r.buf = append(r.buf[:0], data...)
		r.active = true
		return nil, false

	case protocol.FlagsMiddle:
		if !r.active {
			logging.Debug("Dropping video fragment without a start", zap.Int("length", len(data)))
			return nil, false
		}
		r.buf = append(r.buf, data...)
		return nil, false

	case protocol.FlagsLastFragment:
		if !r.active {
			logging.Debug("Dropping video fragment without a start", zap.Int("length", len(data)))
			return nil, false
		}
		frame := append(r.buf, data...)
		r.buf = nil
		r.active = false
		return frame, true

	default:
		logging.Debug("Dropping video fragment with unexpected flags", zap.Uint8("flags", flags))
		r.reset()
		return nil, false
	}
}

func (r *reassembler) reset() {
	r.buf = r.buf[:0]
	r.active = false
}
