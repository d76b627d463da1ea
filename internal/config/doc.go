// Package config provides the head unit settings file.
//
// Settings is the configuration collaborator of the session engine: volume
// offsets per stream role, codec preference, forced software decode, microphone
// sample rate, key remapping table, bluetooth address and optional sensors. It
// also carries the head unit identity, video geometry, TLS engine selection and
// transport timeouts.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/headunit/config.yaml or $HOME/.config/headunit/config.yaml
//   - macOS: $HOME/.config/headunit/config.yaml
//   - Windows: %LOCALAPPDATA%\headunit\config.yaml
//
// # Usage Example
//
//	settings, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	settings.Sensors.GPS = true
//	if err := settings.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// Load merges the file over NewSettings, so a partial file is valid.
package config
