package session

import "github.com/tsabaia/headunit-revived-sub000/internal/protocol"

// Listener receives session events. Callbacks run on session goroutines and
// must not block; they must not call Stop either.
type Listener interface {
	// Connected is called once Start succeeded.
	Connected(remote string)
	// Disconnected is called exactly once per started session. reason is
	// nil for a local Stop.
	Disconnected(reason error)
	// VideoFocus reports whether the phone is projecting.
	VideoFocus(projected bool)
	// VoiceSession reports voice assistant activity.
	VoiceSession(active bool)
	// NightMode is called when night mode changes locally.
	NightMode(night bool)
	// NightRecompute asks the host to reevaluate ambient light now.
	NightRecompute()
	PlaybackStatus(status protocol.PlaybackStatus)
	PlaybackMetadata(meta protocol.PlaybackMetadata)
}

// NopListener ignores every event. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) Connected(string)                           {}
func (NopListener) Disconnected(error)                         {}
func (NopListener) VideoFocus(bool)                            {}
func (NopListener) VoiceSession(bool)                          {}
func (NopListener) NightMode(bool)                             {}
func (NopListener) NightRecompute()                            {}
func (NopListener) PlaybackStatus(protocol.PlaybackStatus)     {}
func (NopListener) PlaybackMetadata(protocol.PlaybackMetadata) {}
