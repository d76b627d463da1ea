package protocol

// PlaybackState is the phone's media player state.
type PlaybackState int32

const (
	PlaybackStopped PlaybackState = 1
	PlaybackPlaying PlaybackState = 2
	PlaybackPaused  PlaybackState = 3
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "stopped"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlaybackStatus is the playback position report.
type PlaybackStatus struct {
	State     PlaybackState
	Source    string
	Seconds   int32
	Shuffle   bool
	Repeat    bool
	RepeatOne bool
}

// ParsePlaybackStatus decodes a playback status report.
func ParsePlaybackStatus(payload []byte) (PlaybackStatus, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return PlaybackStatus{}, err
	}
	return PlaybackStatus{
		State:     PlaybackState(fields.Int32(1)),
		Source:    fields.String(2),
		Seconds:   fields.Int32(3),
		Shuffle:   fields.Bool(4),
		Repeat:    fields.Bool(5),
		RepeatOne: fields.Bool(6),
	}, nil
}

// PlaybackMetadata describes the current track.
type PlaybackMetadata struct {
	Song            string
	Artist          string
	Album           string
	AlbumArt        []byte
	Playlist        string
	DurationSeconds int32
	Rating          int32
}

// ParsePlaybackMetadata decodes a track metadata report.
func ParsePlaybackMetadata(payload []byte) (PlaybackMetadata, error) {
	fields, err := ParseFields(payload)
	if err != nil {
		return PlaybackMetadata{}, err
	}
	return PlaybackMetadata{
		Song:            fields.String(1),
		Artist:          fields.String(2),
		Album:           fields.String(3),
		AlbumArt:        fields.Bytes(4),
		Playlist:        fields.String(5),
		DurationSeconds: fields.Int32(6),
		Rating:          fields.Int32(7),
	}, nil
}
