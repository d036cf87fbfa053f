//go:build noaudio

package audio

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fiveradio/player"
)

var ErrNoAudio = errors.New("built without audio support")

// Backend is a stand-in for builds without a sound card driver.
type Backend struct{}

// Option configures a Backend. Options are accepted and ignored.
type Option func(*Backend)

func WithStallTimeout(d time.Duration) Option {
	return func(*Backend) {}
}

func NewBackend(client *http.Client, opts ...Option) *Backend {
	return &Backend{}
}

func (b *Backend) Open(ctx context.Context, url string) (player.Stream, error) {
	return nil, ErrNoAudio
}
