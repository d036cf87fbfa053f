package spectrum

import (
	"sync"

	"github.com/faiface/beep"
)

// Tap passes audio through unchanged while keeping the latest mono samples
// in a ring buffer for analysis.
type Tap struct {
	s    beep.Streamer
	mu   sync.Mutex
	buf  []float64
	pos  int
	fill int
}

// NewTap wraps a streamer with a ring buffer of the given size.
func NewTap(s beep.Streamer, size int) *Tap {
	if size < FFTSize {
		size = FFTSize
	}
	return &Tap{
		s:   s,
		buf: make([]float64, size),
	}
}

// Stream implements beep.Streamer.
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)

	t.mu.Lock()
	for i := 0; i < n; i++ {
		t.buf[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % len(t.buf)
	}
	t.fill = min(t.fill+n, len(t.buf))
	t.mu.Unlock()

	return n, ok
}

// Err implements beep.Streamer.
func (t *Tap) Err() error {
	return t.s.Err()
}

// Samples returns up to n of the most recent samples, oldest first.
func (t *Tap) Samples(n int) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	n = min(n, t.fill)
	out := make([]float64, n)
	start := (t.pos - n + len(t.buf)) % len(t.buf)
	for i := range out {
		out[i] = t.buf[(start+i)%len(t.buf)]
	}
	return out
}
