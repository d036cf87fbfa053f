package player

import "context"

// Backend attaches playable streams. Open blocks until the stream is ready to
// start (connected and decodable) or has failed, and must honour ctx.
type Backend interface {
	Open(ctx context.Context, url string) (Stream, error)
}

// Stream is a single attached audio stream. It starts paused.
type Stream interface {
	Play() error
	Pause()
	// SetGain sets the effective output level in 0..1.
	SetGain(gain float64)
	// Done is closed when the stream ends or fails on its own, or is closed.
	Done() <-chan struct{}
	// Err reports why the stream ended, nil for a normal close.
	Err() error
	Close() error
}

// Analyser is implemented by streams that can expose recent mono samples.
type Analyser interface {
	Samples(n int) []float64
}
