package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
)

// settingsViper layers HEADUNIT_* environment variables and flags over the
// config file. Only keys that were explicitly set override the file.
var settingsViper = newSettingsViper()

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HEADUNIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// settingsFlag maps a persistent flag to a settings key.
type settingsFlag struct {
	flag string
	key  string
}

var settingsFlags = []settingsFlag{
	{"name", "head_unit.name"},
	{"resolution", "video.resolution"},
	{"fps", "video.fps"},
	{"dpi", "video.dpi"},
	{"engine", "security.engine"},
	{"cert", "security.cert_path"},
	{"key", "security.key_path"},
	{"night", "sensors.night"},
	{"gps", "sensors.gps"},
	{"bluetooth", "bluetooth.address"},
}

func addSettingsFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "Head unit name reported to the phone")
	fs.String("resolution", "", "Video resolution (800x480, 1280x720, 1920x1080)")
	fs.Int("fps", 0, "Video frame rate (30 or 60)")
	fs.Int("dpi", 0, "Video density")
	fs.String("engine", "", "TLS engine (session or engine)")
	fs.String("cert", "", "Head unit certificate (PEM)")
	fs.String("key", "", "Head unit private key (PEM)")
	fs.Bool("night", false, "Offer the night mode sensor")
	fs.Bool("gps", false, "Offer the GPS location sensor")
	fs.String("bluetooth", "", "Bluetooth adapter address to offer for pairing")
	bindSettingsFlags(settingsViper, fs)
}

func bindSettingsFlags(v *viper.Viper, fs *pflag.FlagSet) {
	for _, f := range settingsFlags {
		_ = v.BindPFlag(f.key, fs.Lookup(f.flag))
	}
}

// loadSettings reads the config file and applies the overrides.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(settingsViper, settings)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func applyOverrides(v *viper.Viper, s *config.Settings) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	setString("head_unit.name", &s.HeadUnit.Name)
	setString("video.resolution", &s.Video.Resolution)
	setInt("video.fps", &s.Video.FPS)
	setInt("video.dpi", &s.Video.DPI)
	setString("security.engine", &s.Security.Engine)
	setString("security.cert_path", &s.Security.CertPath)
	setString("security.key_path", &s.Security.KeyPath)
	setBool("sensors.night", &s.Sensors.Night)
	setBool("sensors.gps", &s.Sensors.GPS)
	setString("bluetooth.address", &s.Bluetooth.Address)
}
