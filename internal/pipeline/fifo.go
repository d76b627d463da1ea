package pipeline

import "github.com/tsabaia/headunit-revived-sub000/internal/protocol"

// maxFrameOnWire is the largest frame: prefix, total-size field and body.
const maxFrameOnWire = protocol.EncryptedHeaderSize + protocol.TotalSizeFieldSize + protocol.MaxFrameSize

// fifo is a bounded byte queue with mark/reset. Unread bytes are
// buf[r:w]; the backing array grows on demand up to limit.
type fifo struct {
	buf   []byte
	r, w  int
	mark  int
	limit int
}

func newFIFO(limit int) *fifo {
	initial := limit
	if initial > 64*1024 {
		initial = 64 * 1024
	}
	return &fifo{buf: make([]byte, initial), limit: limit}
}

// Len is the number of unread bytes.
func (f *fifo) Len() int {
	return f.w - f.r
}

// Free is how many more bytes the queue accepts.
func (f *fifo) Free() int {
	return f.limit - f.Len()
}

// Write appends p. It returns false without writing when p does not fit.
func (f *fifo) Write(p []byte) bool {
	if len(p) > f.Free() {
		return false
	}
	if f.w+len(p) > len(f.buf) {
		f.compact(f.Len() + len(p))
	}
	f.w += copy(f.buf[f.w:], p)
	return true
}

// compact moves unread bytes to the front, growing the array to hold need
// bytes.
func (f *fifo) compact(need int) {
	if need > len(f.buf) {
		size := len(f.buf) * 2
		for size < need {
			size *= 2
		}
		if size > f.limit {
			size = f.limit
		}
		grown := make([]byte, size)
		copy(grown, f.buf[f.r:f.w])
		f.buf = grown
	} else {
		copy(f.buf, f.buf[f.r:f.w])
	}
	f.w -= f.r
	f.mark -= f.r
	if f.mark < 0 {
		f.mark = 0
	}
	f.r = 0
}

// Peek returns the next n unread bytes without consuming them. The slice is
// valid until the next Write.
func (f *fifo) Peek(n int) []byte {
	return f.buf[f.r : f.r+n]
}

// Skip consumes n bytes.
func (f *fifo) Skip(n int) {
	f.r += n
}

// Mark remembers the read position.
func (f *fifo) Mark() {
	f.mark = f.r
}

// ResetToMark rewinds to the last Mark.
func (f *fifo) ResetToMark() {
	f.r = f.mark
}

// Clear drops every unread byte and returns how many were dropped.
func (f *fifo) Clear() int {
	lost := f.Len()
	f.r, f.w, f.mark = 0, 0, 0
	return lost
}
