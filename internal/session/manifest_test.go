package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/version"
)

func TestBuildManifestDefaults(t *testing.T) {
	settings := config.NewSettings()
	m, err := BuildManifest(settings)
	require.NoError(t, err)

	assert.Equal(t, settings.HeadUnit.Name, m.HeadUnitName)
	assert.Equal(t, version.SoftwareBuild, m.SoftwareBuild)
	assert.Equal(t, version.Version, m.SoftwareVersion)

	videoCh, ok := m.Channel(protocol.ChannelVideo)
	require.True(t, ok)
	require.NotNil(t, videoCh.MediaSink)
	assert.Equal(t, protocol.StreamVideo, videoCh.MediaSink.StreamType)
	require.Len(t, videoCh.MediaSink.Video, 1)
	assert.Equal(t, int32(settings.Video.DPI), videoCh.MediaSink.Video[0].Density)

	sensorCh, ok := m.Channel(protocol.ChannelSensor)
	require.True(t, ok)
	assert.Contains(t, sensorCh.Sensor.Types, protocol.SensorDrivingStatus)
	assert.NotContains(t, sensorCh.Sensor.Types, protocol.SensorLocation)

	inputCh, ok := m.Channel(protocol.ChannelInput)
	require.True(t, ok)
	width, height, err := settings.Video.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, int32(width), inputCh.Input.TouchWidth)
	assert.Equal(t, int32(height), inputCh.Input.TouchHeight)

	for _, ch := range []protocol.Channel{protocol.ChannelMediaAudio, protocol.ChannelSpeechAudio, protocol.ChannelSystemAudio} {
		desc, ok := m.Channel(ch)
		require.True(t, ok, ch.String())
		require.Len(t, desc.MediaSink.Audio, 1)
		assert.Equal(t, audioFormat(ch), desc.MediaSink.Audio[0])
	}

	mic, ok := m.Channel(protocol.ChannelMicrophone)
	require.True(t, ok)
	assert.Equal(t, int32(settings.Microphone.SampleRate), mic.MediaSource.Audio.SampleRate)

	_, ok = m.Channel(protocol.ChannelBluetooth)
	assert.False(t, ok, "bluetooth needs an address")
	_, ok = m.Channel(protocol.ChannelPlayback)
	assert.True(t, ok)
}

func TestBuildManifestOptionalServices(t *testing.T) {
	settings := config.NewSettings()
	settings.Sensors.GPS = true
	settings.Sensors.Night = true
	settings.Bluetooth.Address = "00:11:22:33:44:55"
	settings.Audio.PreferAAC = true
	settings.Video.Resolution = "1920x1080"
	settings.Video.FPS = 30

	m, err := BuildManifest(settings)
	require.NoError(t, err)

	sensorCh, _ := m.Channel(protocol.ChannelSensor)
	assert.Contains(t, sensorCh.Sensor.Types, protocol.SensorLocation)
	assert.Contains(t, sensorCh.Sensor.Types, protocol.SensorNight)

	bt, ok := m.Channel(protocol.ChannelBluetooth)
	require.True(t, ok)
	assert.Equal(t, "00:11:22:33:44:55", bt.Bluetooth.Address)

	mediaCh, _ := m.Channel(protocol.ChannelMediaAudio)
	assert.Equal(t, protocol.CodecAACLC, mediaCh.MediaSink.Codec)
	speechCh, _ := m.Channel(protocol.ChannelSpeechAudio)
	assert.Equal(t, protocol.CodecPCM, speechCh.MediaSink.Codec)

	videoCh, _ := m.Channel(protocol.ChannelVideo)
	assert.Equal(t, protocol.Resolution1920x1080, videoCh.MediaSink.Video[0].Resolution)
	assert.Equal(t, protocol.FrameRate30, videoCh.MediaSink.Video[0].FrameRate)

	assert.NotEmpty(t, m.Marshal())
}

func TestBuildManifestRejectsUnknownResolution(t *testing.T) {
	settings := config.NewSettings()
	settings.Video.Resolution = "1024x600"
	_, err := BuildManifest(settings)
	assert.Error(t, err)
}
