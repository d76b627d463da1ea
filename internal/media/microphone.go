package media

import (
	"errors"
	"sync"
	"time"
)

// DefaultMicInterval is the capture period of SilentMicrophone.
const DefaultMicInterval = 20 * time.Millisecond

// SilentMicrophone produces zeroed 16-bit mono PCM at a fixed interval. It
// stands in for a capture device on hosts without one.
type SilentMicrophone struct {
	Interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Start begins delivering chunks. It fails if already started.
func (m *SilentMicrophone) Start(sampleRate int, deliver func(pcm []byte)) error {
	if sampleRate <= 0 {
		return errors.New("media: invalid microphone sample rate")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return errors.New("media: microphone already started")
	}

	interval := m.Interval
	if interval <= 0 {
		interval = DefaultMicInterval
	}
	samples := int(int64(sampleRate) * int64(interval) / int64(time.Second))
	stop, done := make(chan struct{}), make(chan struct{})
	m.stop, m.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				deliver(make([]byte, samples*2))
			}
		}
	}()
	return nil
}

// Stop ends capture and waits for the capture goroutine.
func (m *SilentMicrophone) Stop() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Capturing reports whether Start was called without a matching Stop.
func (m *SilentMicrophone) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}
