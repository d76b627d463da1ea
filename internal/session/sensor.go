package session

import (
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/zap"
)

func (s *Session) handleSensor(msg *protocol.Message) int {
	switch msg.Type {
	case protocol.MsgSensorStartRequest:
		req, err := protocol.ParseSensorStartRequest(msg.Payload)
		if err != nil {
			logParseError(msg, err)
			return handled
		}
		logging.Info("Sensor started", zap.Stringer("sensor", req.Type), zap.Int64("period_ms", req.PeriodMs))
		s.sensorMu.Lock()
		s.startedSensors[req.Type] = true
		s.sensorMu.Unlock()
		s.reply(protocol.ChannelSensor, protocol.MsgSensorStartResponse, protocol.StatusResponse(protocol.StatusOK))

		if req.Type == protocol.SensorNight {
			s.listener.NightRecompute()
			s.pushSensor(protocol.NightModeEvent(s.night.Load()))
		}
	default:
		logging.Warn("Unhandled sensor message", zap.String("type", protocol.TypeName(msg.Channel, msg.Type)))
	}
	return handled
}

// SensorStarted reports whether the phone asked for sensor t.
func (s *Session) SensorStarted(t protocol.SensorType) bool {
	s.sensorMu.Lock()
	defer s.sensorMu.Unlock()
	return s.startedSensors[t]
}

// SendSensor sends ev if the session is running and the phone started its
// sensor. Otherwise it returns false and writes nothing.
func (s *Session) SendSensor(ev protocol.SensorEvent) bool {
	if !s.alive.Load() || !s.SensorStarted(ev.Type) {
		logging.Debug("Sensor event not sent", zap.Stringer("sensor", ev.Type))
		return false
	}
	return s.pushSensor(ev)
}

// pushSensor sends ev without checking that its sensor was started.
func (s *Session) pushSensor(ev protocol.SensorEvent) bool {
	if err := s.send(protocol.NewMessage(protocol.ChannelSensor, protocol.MsgSensorEvent, ev.Payload)); err != nil {
		return false
	}
	s.stats.sensorEvents.Add(1)
	return true
}

// SendNightMode records the night state and reports it to the phone.
func (s *Session) SendNightMode(night bool) bool {
	s.night.Store(night)
	return s.SendSensor(protocol.NightModeEvent(night))
}

// SendLocation reports a GPS fix.
func (s *Session) SendLocation(loc protocol.Location) bool {
	return s.SendSensor(protocol.LocationEvent(loc))
}

// SendDrivingStatus reports the driving restriction state.
func (s *Session) SendDrivingStatus(status int32) bool {
	return s.SendSensor(protocol.DrivingStatusEvent(status))
}

// Night reports the local night mode state.
func (s *Session) Night() bool {
	return s.night.Load()
}
