package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"github.com/tsabaia/headunit-revived-sub000/internal/protocol"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNotStarted is returned by DecodeAudio for a channel without a stream.
var ErrNotStarted = errors.New("media: audio channel not started")

// SinkFactory opens the output of one audio stream.
type SinkFactory func(stream AudioStream) (io.WriteCloser, error)

// AudioPlayer is an AudioDecoder that queues each channel into a bounded
// Queue drained by one goroutine per channel into its sink.
type AudioPlayer struct {
	depth int
	open  SinkFactory

	mu      sync.Mutex
	streams map[protocol.Channel]*playback
}

type playback struct {
	stream  AudioStream
	queue   *Queue
	sink    io.WriteCloser
	done    chan struct{}
	written atomic.Uint64
	err     error
}

// NewAudioPlayer creates a player with depth chunks of buffering per channel.
func NewAudioPlayer(depth int, open SinkFactory) *AudioPlayer {
	return &AudioPlayer{
		depth:   depth,
		open:    open,
		streams: make(map[protocol.Channel]*playback),
	}
}

// StartAudio opens the sink for stream.Channel, replacing a running stream.
func (p *AudioPlayer) StartAudio(stream AudioStream) error {
	if err := p.StopAudio(stream.Channel); err != nil {
		logging.Warn("Closing previous audio sink failed", zap.Stringer("channel", stream.Channel), zap.Error(err))
	}

	sink, err := p.open(stream)
	if err != nil {
		return fmt.Errorf("open audio sink for %s: %w", stream.Channel, err)
	}
	pb := &playback{
		stream: stream,
		queue:  NewQueue(p.depth),
		sink:   sink,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	p.streams[stream.Channel] = pb
	p.mu.Unlock()

	go pb.run()

	logging.Info("Audio stream started",
		zap.Stringer("channel", stream.Channel),
		zap.Stringer("role", stream.Role),
		zap.Int("sample_rate", stream.SampleRate),
		zap.Int("channels", stream.ChannelCount),
		zap.Bool("aac", stream.AAC),
		zap.Float64("gain_db", stream.Gain),
	)
	return nil
}

// DecodeAudio queues data for ch, blocking while the queue is full.
func (p *AudioPlayer) DecodeAudio(ctx context.Context, ch protocol.Channel, data []byte) error {
	p.mu.Lock()
	pb := p.streams[ch]
	p.mu.Unlock()
	if pb == nil {
		return ErrNotStarted
	}
	return pb.queue.Push(ctx, data)
}

// StopAudio drains and closes the stream of ch.
func (p *AudioPlayer) StopAudio(ch protocol.Channel) error {
	p.mu.Lock()
	pb := p.streams[ch]
	delete(p.streams, ch)
	p.mu.Unlock()
	if pb == nil {
		return nil
	}

	pb.queue.Close()
	<-pb.done
	logging.Info("Audio stream stopped",
		zap.Stringer("channel", ch),
		zap.Uint64("bytes", pb.written.Load()),
	)
	return pb.err
}

// Playing reports whether ch has a running stream.
func (p *AudioPlayer) Playing(ch protocol.Channel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streams[ch] != nil
}

// Close stops every stream.
func (p *AudioPlayer) Close() error {
	p.mu.Lock()
	channels := make([]protocol.Channel, 0, len(p.streams))
	for ch := range p.streams {
		channels = append(channels, ch)
	}
	p.mu.Unlock()

	var err error
	for _, ch := range channels {
		err = multierr.Append(err, p.StopAudio(ch))
	}
	return err
}

func (pb *playback) run() {
	defer close(pb.done)

	pcm := !pb.stream.AAC && pb.stream.BitDepth == 16
	var writeErr error
	for {
		chunk, err := pb.queue.Pop(context.Background())
		if err != nil {
			break
		}
		if writeErr != nil {
			continue
		}
		if pcm && pb.stream.Gain != 0 {
			chunk = ApplyGain(chunk, pb.stream.Gain)
		}
		if _, writeErr = pb.sink.Write(chunk); writeErr != nil {
			logging.Error("Audio sink write failed, discarding further data",
				zap.Stringer("channel", pb.stream.Channel),
				zap.Error(writeErr),
			)
			continue
		}
		pb.written.Add(uint64(len(chunk)))
	}
	pb.err = multierr.Append(writeErr, pb.sink.Close())
}

// ApplyGain scales 16-bit little-endian PCM by gainDB, clipping at the
// sample range. The input is not modified.
func ApplyGain(pcm []byte, gainDB float64) []byte {
	factor := math.Pow(10, gainDB/20)
	out := make([]byte, len(pcm)&^1)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		scaled := math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(sample*factor)))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(scaled)))
	}
	return out
}
