package main

import (
	"errors"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/media"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"github.com/tsabaia/headunit-revived-sub000/internal/session"
	"github.com/tsabaia/headunit-revived-sub000/internal/transport"
)

// host owns the media sinks behind a session and logs its events. With an
// output directory, video goes to video.h264 and every audio channel to its
// own raw file; without one all media is discarded.
type host struct {
	session.NopListener

	settings *config.Settings
	video    media.VideoDecoder
	h264     *media.H264File
	player   *media.AudioPlayer
}

func newHost(settings *config.Settings, outDir string) (*host, error) {
	h := &host{settings: settings, video: media.Discard{}}
	sinks := media.DiscardSinks()
	if outDir != "" {
		file, err := media.CreateH264File(filepath.Join(outDir, "video.h264"))
		if err != nil {
			return nil, err
		}
		h.h264 = file
		h.video = file
		sinks = media.FileSinks(outDir)
		logging.Info("Writing media", zap.String("dir", outDir))
	}
	h.player = media.NewAudioPlayer(settings.Audio.QueueDepth, sinks)
	return h, nil
}

// newSession builds a session on port that feeds this host.
func (h *host) newSession(port transport.Port) (*session.Session, error) {
	return session.New(session.Config{
		Settings:   h.settings,
		Port:       port,
		Video:      h.video,
		Audio:      h.player,
		Microphone: &media.SilentMicrophone{},
		Listener:   h,
	})
}

func (h *host) Close() error {
	var errs error
	errs = multierr.Append(errs, h.player.Close())
	if h.h264 != nil {
		errs = multierr.Append(errs, h.h264.Close())
	}
	return errs
}

func (h *host) Connected(remote string) {
	logging.Info("Phone connected", zap.String("remote_addr", remote))
}

func (h *host) Disconnected(reason error) {
	if reason == nil || errors.Is(reason, session.ErrByeBye) {
		logging.Info("Phone disconnected", zap.NamedError("reason", reason))
		return
	}
	logging.Warn("Phone disconnected", zap.Error(reason))
}

func (h *host) VideoFocus(projected bool) {
	logging.Info("Video focus changed", zap.Bool("projected", projected))
}

func (h *host) VoiceSession(active bool) {
	logging.Info("Voice session", zap.Bool("active", active))
}

func (h *host) NightMode(night bool) {
	logging.Info("Night mode changed", zap.Bool("night", night))
}

func (h *host) PlaybackStatus(status protocol.PlaybackStatus) {
	logging.Debug("Playback status",
		zap.Stringer("state", status.State),
		zap.String("source", status.Source),
		zap.Int32("seconds", status.Seconds),
	)
}

func (h *host) PlaybackMetadata(meta protocol.PlaybackMetadata) {
	logging.Info("Now playing",
		zap.String("song", meta.Song),
		zap.String("artist", meta.Artist),
		zap.String("album", meta.Album),
		zap.Int32("duration_s", meta.DurationSeconds),
	)
}
