package session

import (
	"sync/atomic"

	"github.com/tsabaia/headunit-revived-sub000/internal/pipeline"
)

// Stats is a snapshot of session counters.
type Stats struct {
	State   State
	Inbound pipeline.Stats

	FramesOut  uint64
	BytesOut   uint64
	SendErrors uint64

	VideoFrames    uint64
	VideoDropped   uint64
	AudioChunks    uint64
	MicChunks      uint64
	SensorEvents   uint64
	UnknownDropped uint64
}

type counters struct {
	framesOut      atomic.Uint64
	bytesOut       atomic.Uint64
	sendErrors     atomic.Uint64
	videoFrames    atomic.Uint64
	videoDropped   atomic.Uint64
	audioChunks    atomic.Uint64
	micChunks      atomic.Uint64
	sensorEvents   atomic.Uint64
	unknownDropped atomic.Uint64
}

// Stats returns the current counters.
func (s *Session) Stats() Stats {
	st := Stats{
		State:          s.State(),
		FramesOut:      s.stats.framesOut.Load(),
		BytesOut:       s.stats.bytesOut.Load(),
		SendErrors:     s.stats.sendErrors.Load(),
		VideoFrames:    s.stats.videoFrames.Load(),
		VideoDropped:   s.stats.videoDropped.Load(),
		AudioChunks:    s.stats.audioChunks.Load(),
		MicChunks:      s.stats.micChunks.Load(),
		SensorEvents:   s.stats.sensorEvents.Load(),
		UnknownDropped: s.stats.unknownDropped.Load(),
	}
	// strategy is published by the Running state store in Start.
	if st.State >= StateRunning && s.strategy != nil {
		st.Inbound = s.strategy.Stats()
	}
	return st
}
