package session

import (
	"fmt"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/version"
)

// PCM formats offered per audio sink
var (
	mediaAudioConfig  = protocol.AudioConfig{SampleRate: 48000, BitDepth: 16, Channels: 2}
	speechAudioConfig = protocol.AudioConfig{SampleRate: 16000, BitDepth: 16, Channels: 1}
	systemAudioConfig = protocol.AudioConfig{SampleRate: 16000, BitDepth: 16, Channels: 1}
)

// BuildManifest builds the service discovery response for settings.
func BuildManifest(settings *config.Settings) (*protocol.ServiceDiscoveryResponse, error) {
	width, height, err := settings.Video.Dimensions()
	if err != nil {
		return nil, err
	}
	resolution, err := resolutionCode(settings.Video.Resolution)
	if err != nil {
		return nil, err
	}
	frameRate := protocol.FrameRate60
	if settings.Video.FPS == 30 {
		frameRate = protocol.FrameRate30
	}

	sensors := []protocol.SensorType{protocol.SensorDrivingStatus}
	if settings.Sensors.Night {
		sensors = append(sensors, protocol.SensorNight)
	}
	if settings.Sensors.GPS {
		sensors = append(sensors, protocol.SensorLocation)
	}

	mediaCodec := protocol.CodecPCM
	if settings.Audio.PreferAAC {
		mediaCodec = protocol.CodecAACLC
	}

	channels := []protocol.ChannelDescriptor{
		{
			ID:     protocol.ChannelSensor,
			Sensor: &protocol.SensorService{Types: sensors},
		},
		{
			ID: protocol.ChannelVideo,
			MediaSink: &protocol.MediaSinkService{
				StreamType: protocol.StreamVideo,
				Codec:      protocol.CodecH264BP,
				Video: []protocol.VideoConfig{{
					Resolution:   resolution,
					FrameRate:    frameRate,
					MarginWidth:  int32(settings.Video.MarginWidth),
					MarginHeight: int32(settings.Video.MarginHeight),
					Density:      int32(settings.Video.DPI),
				}},
				AvailableInCall: true,
			},
		},
		{
			ID: protocol.ChannelInput,
			Input: &protocol.InputService{
				Keycodes:    protocol.SupportedKeycodes,
				TouchWidth:  int32(width),
				TouchHeight: int32(height),
			},
		},
		audioSink(protocol.ChannelMediaAudio, protocol.AudioRoleMedia, mediaAudioConfig, mediaCodec),
		audioSink(protocol.ChannelSpeechAudio, protocol.AudioRoleSpeech, speechAudioConfig, protocol.CodecPCM),
		audioSink(protocol.ChannelSystemAudio, protocol.AudioRoleSystem, systemAudioConfig, protocol.CodecPCM),
		{
			ID: protocol.ChannelMicrophone,
			MediaSource: &protocol.MediaSourceService{
				StreamType: protocol.StreamAudio,
				Audio: protocol.AudioConfig{
					SampleRate: int32(settings.Microphone.SampleRate),
					BitDepth:   16,
					Channels:   1,
				},
			},
		},
	}
	if settings.Bluetooth.Address != "" {
		channels = append(channels, protocol.ChannelDescriptor{
			ID: protocol.ChannelBluetooth,
			Bluetooth: &protocol.BluetoothService{
				Address:        settings.Bluetooth.Address,
				PairingMethods: []int32{protocol.PairingPIN, protocol.PairingNumericalOK},
			},
		})
	}
	channels = append(channels, protocol.ChannelDescriptor{
		ID:             protocol.ChannelPlayback,
		PlaybackStatus: true,
	})

	hu := settings.HeadUnit
	return &protocol.ServiceDiscoveryResponse{
		Channels:        channels,
		HeadUnitName:    hu.Name,
		CarModel:        hu.CarModel,
		CarYear:         hu.CarYear,
		CarSerial:       hu.CarSerial,
		LeftHandDrive:   hu.LeftHandDrive,
		Make:            hu.Make,
		Model:           hu.Model,
		SoftwareBuild:   version.SoftwareBuild,
		SoftwareVersion: version.Version,
	}, nil
}

func audioSink(ch protocol.Channel, role protocol.AudioRole, cfg protocol.AudioConfig, codec protocol.MediaCodec) protocol.ChannelDescriptor {
	return protocol.ChannelDescriptor{
		ID: ch,
		MediaSink: &protocol.MediaSinkService{
			StreamType: protocol.StreamAudio,
			AudioRole:  role,
			Audio:      []protocol.AudioConfig{cfg},
			Codec:      codec,
		},
	}
}

func resolutionCode(resolution string) (int32, error) {
	switch resolution {
	case "800x480":
		return protocol.Resolution800x480, nil
	case "1280x720":
		return protocol.Resolution1280x720, nil
	case "1920x1080":
		return protocol.Resolution1920x1080, nil
	default:
		return 0, fmt.Errorf("unsupported video resolution %q", resolution)
	}
}

// audioFormat returns the PCM format advertised for an audio channel.
func audioFormat(ch protocol.Channel) protocol.AudioConfig {
	switch ch {
	case protocol.ChannelMediaAudio:
		return mediaAudioConfig
	case protocol.ChannelSpeechAudio:
		return speechAudioConfig
	default:
		return systemAudioConfig
	}
}
