package protocol

// TouchAction is the pointer action of a touch event.
type TouchAction int32

const (
	TouchDown TouchAction = 0
	TouchUp   TouchAction = 1
	TouchMove TouchAction = 2
)

// Pointer is one touch point in display coordinates.
type Pointer struct {
	X  int32
	Y  int32
	ID int32
}

// TouchEvent builds an input report with a single touch action.
func TouchEvent(timestampNs int64, action TouchAction, pointers ...Pointer) []byte {
	touch := NewBuilder()
	for _, p := range pointers {
		point := NewBuilder().Int(1, int64(p.X)).Int(2, int64(p.Y)).Int(3, int64(p.ID))
		touch.Message(1, point)
	}
	touch.Uint(2, 0).Int(3, int64(action))
	return NewBuilder().Int(1, timestampNs).Message(3, touch).Encode()
}

// Key is one key transition.
type Key struct {
	Code      int32
	Down      bool
	MetaState int32
	LongPress bool
}

// KeyEvent builds an input report with key transitions.
func KeyEvent(timestampNs int64, keys ...Key) []byte {
	event := NewBuilder()
	for _, k := range keys {
		key := NewBuilder().
			Int(1, int64(k.Code)).
			Bool(2, k.Down).
			Int(3, int64(k.MetaState)).
			Bool(4, k.LongPress)
		event.Message(1, key)
	}
	return NewBuilder().Int(1, timestampNs).Message(4, event).Encode()
}

// RelativeEvent builds an input report for a rotary controller delta.
func RelativeEvent(timestampNs int64, keycode, delta int32) []byte {
	data := NewBuilder().Int(1, int64(keycode)).Int(2, int64(delta))
	relative := NewBuilder().Message(1, data)
	return NewBuilder().Int(1, timestampNs).Message(6, relative).Encode()
}

// ParseKeyBindingRequest returns the keycodes the phone wants delivered.
func ParseKeyBindingRequest(payload []byte) ([]int32, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return nil, err
	}
	raw := fields.RepeatedUint(1)
	codes := make([]int32, 0, len(raw))
	for _, v := range raw {
		codes = append(codes, int32(v))
	}
	return codes, nil
}
