//go:build !noaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fiveradio/player"
	"fiveradio/spectrum"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"
)

// DefaultStallTimeout is how long a playing stream may go without data.
const DefaultStallTimeout = 5 * time.Second

var (
	ErrStalled      = errors.New("stream stalled")
	errStreamClosed = errors.New("stream closed")
)

// output is what a stream needs from the audio device.
type output interface {
	Play()
	Pause()
	Close() error
}

// Backend plays streams through oto. The audio device is opened on first use
// and shared by every stream.
type Backend struct {
	client       *http.Client
	stallTimeout time.Duration

	connect   func(ctx context.Context, client *http.Client, url string) (*source, error)
	newOutput func(r io.Reader) (output, error)

	once    sync.Once
	otoCtx  *oto.Context
	initErr error
}

// Option configures a Backend.
type Option func(*Backend)

// WithStallTimeout ends a playing stream that produces no audio for d.
// Zero disables the check.
func WithStallTimeout(d time.Duration) Option {
	return func(b *Backend) { b.stallTimeout = d }
}

// NewBackend creates a backend. client must not set a Timeout, since streams
// never finish; nil uses a default client.
func NewBackend(client *http.Client, opts ...Option) *Backend {
	if client == nil {
		client = &http.Client{}
	}
	b := &Backend{
		client:       client,
		stallTimeout: DefaultStallTimeout,
		connect:      openSource,
	}
	b.newOutput = b.otoOutput
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) device() (*oto.Context, error) {
	b.once.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   int(SampleRate),
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			b.initErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		b.otoCtx = ctx
	})
	return b.otoCtx, b.initErr
}

func (b *Backend) otoOutput(r io.Reader) (output, error) {
	dev, err := b.device()
	if err != nil {
		return nil, err
	}
	return dev.NewPlayer(r), nil
}

// Open connects to url and prepares a paused stream. Cancelling ctx aborts
// the attach; once Open returns, the stream lives until Close.
func (b *Backend) Open(ctx context.Context, url string) (player.Stream, error) {
	streamCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)

	src, err := b.connect(streamCtx, b.client, url)
	if !stop() {
		// ctx fired during the attach.
		if src != nil {
			src.Close()
		}
		cancel()
		if err == nil {
			err = ctx.Err()
		}
		return nil, err
	}
	if err != nil {
		cancel()
		return nil, err
	}

	s := &stream{
		src:    src,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.paused.Store(true)
	s.tap = spectrum.NewTap(src.streamer, int(SampleRate)/10)
	s.pcm = newPCMReader(s.tap, 0, s.finish)

	out, err := b.newOutput(s.pcm)
	if err != nil {
		cancel()
		src.Close()
		return nil, err
	}
	s.out = out

	if b.stallTimeout > 0 {
		go s.watchdog(b.stallTimeout)
	}
	return s, nil
}

// stream is one attached station.
type stream struct {
	src    *source
	tap    *spectrum.Tap
	pcm    *pcmReader
	out    output
	cancel context.CancelFunc
	paused atomic.Bool

	mu       sync.Mutex
	err      error
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

func (s *stream) Play() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errStreamClosed
	}
	select {
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return errStreamClosed
	default:
	}

	// Time spent paused does not count as a stall.
	s.pcm.touch()
	s.paused.Store(false)
	s.out.Play()
	return nil
}

func (s *stream) Pause() {
	s.paused.Store(true)
	s.out.Pause()
}

func (s *stream) SetGain(gain float64) {
	s.pcm.setGain(gain)
}

// Samples implements player.Analyser.
func (s *stream) Samples(n int) []float64 {
	return s.tap.Samples(n)
}

func (s *stream) Done() <-chan struct{} {
	return s.done
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.out.Close()
	if cerr := s.src.Close(); err == nil {
		err = cerr
	}
	s.finish(nil)
	return err
}

// watchdog ends the stream when it plays without producing data for timeout.
func (s *stream) watchdog(timeout time.Duration) {
	ticker := time.NewTicker(max(timeout/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.paused.Load() {
				continue
			}
			if idle := s.pcm.idle(); idle > timeout {
				log.Warn().Dur("idle", idle).Msg("no audio data, giving up on stream")
				s.finish(fmt.Errorf("%w: no data for %s", ErrStalled, idle.Round(time.Millisecond)))
				// Unblock a decoder stuck on the network.
				s.cancel()
				return
			}
		}
	}
}

// finish records why the stream ended. Errors after Close are not reported.
func (s *stream) finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		if !s.closed {
			s.err = err
		}
		s.mu.Unlock()
		if err != nil {
			log.Debug().Err(err).Msg("stream ended with error")
		}
		close(s.done)
	})
}
