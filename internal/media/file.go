package media

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// H264File writes coded video frames to an Annex-B elementary stream file,
// playable with ffplay or mpv.
type H264File struct {
	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	frames int
	bytes  int64
}

// CreateH264File creates (or truncates) path.
func CreateH264File(path string) (*H264File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &H264File{file: f, w: bufio.NewWriter(f)}, nil
}

// DecodeVideo appends frame, adding a start code when the frame lacks one.
func (h *H264File) DecodeVideo(frame []byte, _ VideoHint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return os.ErrClosed
	}
	if !hasStartCode(frame) {
		if _, err := h.w.Write(annexBStartCode); err != nil {
			return err
		}
		h.bytes += int64(len(annexBStartCode))
	}
	n, err := h.w.Write(frame)
	h.bytes += int64(n)
	if err != nil {
		return err
	}
	h.frames++
	return nil
}

// Frames is the number of frames written.
func (h *H264File) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Close flushes and closes the file.
func (h *H264File) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.w.Flush()
	if cerr := h.file.Close(); err == nil {
		err = cerr
	}
	h.file = nil
	return err
}

func hasStartCode(frame []byte) bool {
	return bytes.HasPrefix(frame, annexBStartCode) || bytes.HasPrefix(frame, annexBStartCode[1:])
}

// FileSinks returns a SinkFactory writing each stream to dir as
// <channel>.pcm, or <channel>.aac for AAC streams.
func FileSinks(dir string) SinkFactory {
	return func(stream AudioStream) (io.WriteCloser, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		ext := "pcm"
		if stream.AAC {
			ext = "aac"
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s.%s", stream.Channel, ext)))
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// DiscardSinks returns a SinkFactory that drops all audio.
func DiscardSinks() SinkFactory {
	return func(AudioStream) (io.WriteCloser, error) {
		return nopCloser{io.Discard}, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
