// Package media holds the decoder, capture and focus collaborators a session
// produces into, plus file-backed implementations for hosts without
// hardware decoders.
//
// Audio is the only place with backpressure: AudioPlayer queues each
// channel into a bounded Queue, and DecodeAudio blocks while that queue is
// full. The read loop is therefore paced by the slowest sink rather than
// dropping samples.
package media
