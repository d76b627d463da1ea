package session

import (
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

// Guide presses are delivered as a tap at this display position.
const (
	guideTapX = 99
	guideTapY = 444
)

func (s *Session) handleInput(msg *protocol.Message) int {
	switch msg.Type {
	case protocol.MsgKeyBindingRequest:
		codes, err := protocol.ParseKeyBindingRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
		}
		logging.Debug("Key binding request", zap.Int("keycodes", len(codes)))
		s.reply(protocol.ChannelInput, protocol.MsgKeyBindingResponse, protocol.StatusResponse(protocol.StatusOK))
	default:
		logging.Warn("Unhandled input message", zap.String("type", protocol.TypeName(msg.Channel, msg.Type)))
	}
	return handled
}

// SendKey reports a key transition after applying the configured key map.
// A few keycodes are translated instead of forwarded: guide becomes a tap,
// N toggles night mode and soft left/right turn the rotary controller.
func (s *Session) SendKey(keycode int, down bool) error {
	if !s.alive.Load() {
		return ErrNotRunning
	}
	code := s.settings.Input.MapKey(keycode)
	now := time.Now().UnixNano()

	switch code {
	case protocol.KeycodeGuide:
		if !down {
			return nil
		}
		if err := s.SendTouch(protocol.TouchDown, guideTapX, guideTapY); err != nil {
			return err
		}
		return s.SendTouch(protocol.TouchUp, guideTapX, guideTapY)

	case protocol.KeycodeN:
		if !down {
			return nil
		}
		night := !s.night.Load()
		s.night.Store(night)
		s.listener.NightMode(night)
		s.SendSensor(protocol.NightModeEvent(night))
		return nil

	case protocol.KeycodeSoftLeft, protocol.KeycodeSoftRight:
		if !down {
			return nil
		}
		delta := int32(-1)
		if code == protocol.KeycodeSoftRight {
			delta = 1
		}
		return s.send(protocol.NewMessage(protocol.ChannelInput, protocol.MsgInputReport,
			protocol.RelativeEvent(now, protocol.KeycodeRotaryController, delta)))

	default:
		return s.send(protocol.NewMessage(protocol.ChannelInput, protocol.MsgInputReport,
			protocol.KeyEvent(now, protocol.Key{Code: int32(code), Down: down})))
	}
}

// SendTouch reports a single pointer touch action in display coordinates.
func (s *Session) SendTouch(action protocol.TouchAction, x, y int) error {
	if !s.alive.Load() {
		return ErrNotRunning
	}
	return s.send(protocol.NewMessage(protocol.ChannelInput, protocol.MsgInputReport,
		protocol.TouchEvent(time.Now().UnixNano(), action, protocol.Pointer{X: int32(x), Y: int32(y)})))
}
