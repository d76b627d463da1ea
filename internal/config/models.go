package config

import (
	"fmt"
	"strings"
	"time"
)

// CurrentVersion is the settings file format version.
const CurrentVersion = 1

// Security engine names accepted in Security.Engine.
const (
	EngineSession = "session"
	EngineEngine  = "engine"
)

// Settings is the head unit configuration consumed by the session engine.
type Settings struct {
	Version    int        `yaml:"version"`
	HeadUnit   HeadUnit   `yaml:"head_unit"`
	Video      Video      `yaml:"video"`
	Audio      Audio      `yaml:"audio"`
	Microphone Microphone `yaml:"microphone"`
	Input      Input      `yaml:"input"`
	Sensors    Sensors    `yaml:"sensors"`
	Bluetooth  Bluetooth  `yaml:"bluetooth,omitempty"`
	Security   Security   `yaml:"security"`
	Transport  Transport  `yaml:"transport"`
}

// HeadUnit is the identity reported in the service discovery response.
type HeadUnit struct {
	Name          string `yaml:"name"`
	Make          string `yaml:"make"`
	Model         string `yaml:"model"`
	CarModel      string `yaml:"car_model"`
	CarYear       string `yaml:"car_year"`
	CarSerial     string `yaml:"car_serial"`
	LeftHandDrive bool   `yaml:"left_hand_drive"`
}

// Video describes the offered video sink.
type Video struct {
	Resolution    string `yaml:"resolution"` // 800x480, 1280x720 or 1920x1080
	FPS           int    `yaml:"fps"`        // 30 or 60
	MarginWidth   int    `yaml:"margin_width"`
	MarginHeight  int    `yaml:"margin_height"`
	DPI           int    `yaml:"dpi"`
	Codec         string `yaml:"codec"` // decoder hint, e.g. "h264"
	ForceSoftware bool   `yaml:"force_software"`
}

// Audio holds per stream role volume offsets and the media codec preference.
type Audio struct {
	MediaGain  float64 `yaml:"media_gain"`
	SpeechGain float64 `yaml:"speech_gain"`
	SystemGain float64 `yaml:"system_gain"`
	PreferAAC  bool    `yaml:"prefer_aac"`
	QueueDepth int     `yaml:"queue_depth"` // bounded chunks per audio channel
}

// Microphone configures the capture path.
type Microphone struct {
	SampleRate int `yaml:"sample_rate"`
}

// Input carries the logical key remapping table (host keycode -> keycode).
type Input struct {
	KeyMap map[int]int `yaml:"key_map,omitempty"`
}

// Sensors toggles optional sensors in the capability manifest.
type Sensors struct {
	GPS   bool `yaml:"gps"`
	Night bool `yaml:"night"`
}

// Bluetooth is offered only when Address is set.
type Bluetooth struct {
	Address string `yaml:"address,omitempty"`
}

// Security selects the TLS engine and the client identity.
type Security struct {
	Engine   string `yaml:"engine"`
	CertPath string `yaml:"cert_path,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// Transport bounds the blocking transport calls.
type Transport struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	VersionAttempts  int           `yaml:"version_attempts"`
}

// NewSettings creates a Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: CurrentVersion,
		HeadUnit: HeadUnit{
			Name:          "Headunit",
			Make:          "Headunit Revived",
			Model:         "Go",
			CarModel:      "Universal",
			CarYear:       "2024",
			CarSerial:     "0000000000000001",
			LeftHandDrive: true,
		},
		Video: Video{
			Resolution: "800x480",
			FPS:        60,
			DPI:        140,
			Codec:      "h264",
		},
		Audio: Audio{
			QueueDepth: 16,
		},
		Microphone: Microphone{
			SampleRate: 16000,
		},
		Input: Input{
			KeyMap: map[int]int{},
		},
		Sensors: Sensors{
			Night: true,
		},
		Security: Security{
			Engine: EngineSession,
		},
		Transport: Transport{
			HandshakeTimeout: 5 * time.Second,
			ReadTimeout:      150 * time.Millisecond,
			WriteTimeout:     time.Second,
			VersionAttempts:  3,
		},
	}
}

// Dimensions returns the pixel size of the configured resolution.
func (v Video) Dimensions() (width, height int, err error) {
	switch v.Resolution {
	case "800x480":
		return 800, 480, nil
	case "1280x720":
		return 1280, 720, nil
	case "1920x1080":
		return 1920, 1080, nil
	default:
		return 0, 0, fmt.Errorf("unsupported video resolution %q", v.Resolution)
	}
}

// MapKey applies the remapping table; unmapped keys pass through.
func (i Input) MapKey(keycode int) int {
	if mapped, ok := i.KeyMap[keycode]; ok {
		return mapped
	}
	return keycode
}

// Validate reports every problem found in the settings.
func (s *Settings) Validate() error {
	var problems []string

	if s.Version != CurrentVersion {
		problems = append(problems, fmt.Sprintf("unsupported config version: %d (expected %d)", s.Version, CurrentVersion))
	}
	if _, _, err := s.Video.Dimensions(); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Video.FPS != 30 && s.Video.FPS != 60 {
		problems = append(problems, fmt.Sprintf("video fps must be 30 or 60, got %d", s.Video.FPS))
	}
	if s.Video.MarginWidth < 0 || s.Video.MarginHeight < 0 {
		problems = append(problems, "video margins must not be negative")
	}
	if s.Audio.QueueDepth <= 0 {
		problems = append(problems, "audio queue_depth must be positive")
	}
	switch s.Microphone.SampleRate {
	case 8000, 16000, 44100, 48000:
	default:
		problems = append(problems, fmt.Sprintf("unsupported microphone sample rate %d", s.Microphone.SampleRate))
	}
	if s.Security.Engine != EngineSession && s.Security.Engine != EngineEngine {
		problems = append(problems, fmt.Sprintf("security engine must be %q or %q, got %q", EngineSession, EngineEngine, s.Security.Engine))
	}
	if (s.Security.CertPath == "") != (s.Security.KeyPath == "") {
		problems = append(problems, "security cert_path and key_path must be set together")
	}
	if s.Transport.HandshakeTimeout <= 0 || s.Transport.ReadTimeout <= 0 || s.Transport.WriteTimeout <= 0 {
		problems = append(problems, "transport timeouts must be positive")
	}
	if s.Transport.VersionAttempts <= 0 {
		problems = append(problems, "transport version_attempts must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}
