package pipeline

import "time"

// Default timings and sizes.
const (
	DefaultHeaderTimeout   = 5 * time.Second
	DefaultFragmentTimeout = 150 * time.Millisecond
	DefaultPollTimeout     = 150 * time.Millisecond

	// DefaultBufferSize holds several maximum-size frames.
	DefaultBufferSize = 4 * maxFrameOnWire
	// DefaultChunkSize is the largest physical read of the streaming strategy.
	DefaultChunkSize = 16 * 1024
)

type options struct {
	headerTimeout   time.Duration
	fragmentTimeout time.Duration
	pollTimeout     time.Duration
	bufferSize      int
	chunkSize       int
}

func defaultOptions() options {
	return options{
		headerTimeout:   DefaultHeaderTimeout,
		fragmentTimeout: DefaultFragmentTimeout,
		pollTimeout:     DefaultPollTimeout,
		bufferSize:      DefaultBufferSize,
		chunkSize:       DefaultChunkSize,
	}
}

// Option configures a Strategy.
type Option func(*options)

// WithHeaderTimeout bounds the first read of a message (single-message).
func WithHeaderTimeout(d time.Duration) Option {
	return func(o *options) { o.headerTimeout = d }
}

// WithFragmentTimeout bounds the total-size field and body reads
// (single-message).
func WithFragmentTimeout(d time.Duration) Option {
	return func(o *options) { o.fragmentTimeout = d }
}

// WithPollTimeout bounds each physical read (streaming).
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) { o.pollTimeout = d }
}

// WithBufferSize sets the FIFO capacity (streaming). A capacity smaller than
// one chunk is raised to the chunk size.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithChunkSize sets the physical read size (streaming).
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}
