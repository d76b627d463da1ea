package protocol

import "fmt"

// SensorType identifies a sensor offered in the manifest.
type SensorType int32

const (
	SensorLocation      SensorType = 1
	SensorCompass       SensorType = 2
	SensorSpeed         SensorType = 3
	SensorRPM           SensorType = 4
	SensorOdometer      SensorType = 5
	SensorFuel          SensorType = 6
	SensorParkingBrake  SensorType = 7
	SensorGear          SensorType = 8
	SensorNight         SensorType = 10
	SensorDrivingStatus SensorType = 13
	SensorGPSSatellite  SensorType = 21
)

func (t SensorType) String() string {
	switch t {
	case SensorLocation:
		return "location"
	case SensorCompass:
		return "compass"
	case SensorSpeed:
		return "speed"
	case SensorRPM:
		return "rpm"
	case SensorOdometer:
		return "odometer"
	case SensorFuel:
		return "fuel"
	case SensorParkingBrake:
		return "parking-brake"
	case SensorGear:
		return "gear"
	case SensorNight:
		return "night"
	case SensorDrivingStatus:
		return "driving-status"
	case SensorGPSSatellite:
		return "gps-satellite"
	default:
		return fmt.Sprintf("sensor(%d)", int32(t))
	}
}

// DrivingStatusUnrestricted allows every UI interaction.
const DrivingStatusUnrestricted int32 = 0

// SensorStartRequest asks the head unit to begin reporting a sensor.
type SensorStartRequest struct {
	Type     SensorType
	PeriodMs int64
}

// ParseSensorStartRequest decodes a sensor start request.
func ParseSensorStartRequest(payload []byte) (SensorStartRequest, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return SensorStartRequest{}, err
	}
	return SensorStartRequest{
		Type:     SensorType(fields.Int32(1)),
		PeriodMs: fields.Int64(2),
	}, nil
}

// SensorEvent is one entry of a sensor batch. Type decides which sensor must
// have been started before it may be sent.
type SensorEvent struct {
	Type    SensorType
	Payload []byte
}

// DrivingStatusEvent builds a driving status sensor batch.
func DrivingStatusEvent(status int32) SensorEvent {
	inner := NewBuilder().Int(1, int64(status))
	return SensorEvent{
		Type:    SensorDrivingStatus,
		Payload: NewBuilder().Message(13, inner).Encode(),
	}
}

// NightModeEvent builds a night mode sensor batch.
func NightModeEvent(night bool) SensorEvent {
	inner := NewBuilder().Bool(1, night)
	return SensorEvent{
		Type:    SensorNight,
		Payload: NewBuilder().Message(10, inner).Encode(),
	}
}

// ParkingBrakeEvent builds a parking brake sensor batch.
func ParkingBrakeEvent(engaged bool) SensorEvent {
	inner := NewBuilder().Bool(1, engaged)
	return SensorEvent{
		Type:    SensorParkingBrake,
		Payload: NewBuilder().Message(7, inner).Encode(),
	}
}

// Location is a GPS fix.
type Location struct {
	TimestampMs int64
	Latitude    float64 // degrees
	Longitude   float64 // degrees
	AccuracyM   float64
	AltitudeM   float64
	SpeedMps    float64
	BearingDeg  float64
}

// LocationEvent builds a location sensor batch. Coordinates are sent as
// degrees*1e7 and bearing as degrees*1e6. Accuracy, altitude and speed are
// scaled by 1e3.
func LocationEvent(loc Location) SensorEvent {
	inner := NewBuilder().
		Int(1, loc.TimestampMs).
		Int(2, int64(loc.Latitude*1e7)).
		Int(3, int64(loc.Longitude*1e7)).
		Int(4, int64(loc.AccuracyM*1e3)).
		Int(5, int64(loc.AltitudeM*1e3)).
		Int(6, int64(loc.SpeedMps*1e3)).
		Int(7, int64(loc.BearingDeg*1e6))
	return SensorEvent{
		Type:    SensorLocation,
		Payload: NewBuilder().Message(1, inner).Encode(),
	}
}
