//go:build !noaudio

package audio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faiface/beep"
)

// fakeOutput drains its reader while playing, the way the sound card pulls
// from an oto player.
type fakeOutput struct {
	r io.Reader

	mu      sync.Mutex
	playing bool
	started bool
	closed  bool
	stop    chan struct{}
}

func newFakeOutput(r io.Reader) *fakeOutput {
	return &fakeOutput{r: r, stop: make(chan struct{})}
}

func (o *fakeOutput) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = true
	if !o.started {
		o.started = true
		go o.pump()
	}
}

func (o *fakeOutput) Pause() {
	o.mu.Lock()
	o.playing = false
	o.mu.Unlock()
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.stop)
	}
	return nil
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *fakeOutput) pump() {
	buf := make([]byte, 64*frameSize)
	for {
		select {
		case <-o.stop:
			return
		case <-time.After(time.Millisecond):
		}
		o.mu.Lock()
		playing := o.playing
		o.mu.Unlock()
		if !playing {
			continue
		}
		if _, err := o.r.Read(buf); err != nil {
			return
		}
	}
}

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

// stuckStreamer never produces audio, like a server that stops sending
// without closing the connection. It returns once the request is cancelled.
type stuckStreamer struct{ ctx context.Context }

func (s *stuckStreamer) Stream(samples [][2]float64) (int, bool) {
	<-s.ctx.Done()
	return 0, false
}

func (s *stuckStreamer) Err() error { return s.ctx.Err() }

// testBackend wires a backend to fake outputs and to a source built by
// stream, which receives the request context.
func testBackend(t *testing.T, stream func(ctx context.Context) beep.Streamer, opts ...Option) (*Backend, *countingCloser, chan *fakeOutput) {
	t.Helper()
	closer := &countingCloser{}
	outputs := make(chan *fakeOutput, 1)

	b := NewBackend(nil, opts...)
	b.connect = func(ctx context.Context, _ *http.Client, _ string) (*source, error) {
		return &source{streamer: stream(ctx), closer: closer}, nil
	}
	b.newOutput = func(r io.Reader) (output, error) {
		o := newFakeOutput(r)
		outputs <- o
		return o, nil
	}
	return b, closer, outputs
}

func waitDone(t *testing.T, s interface{ Done() <-chan struct{} }) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish")
	}
}

func TestBackendOpen_CancelDuringSlowHeaders(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	b := NewBackend(server.Client())
	b.newOutput = func(io.Reader) (output, error) {
		t.Error("no output should be created for an aborted attach")
		return nil, errors.New("unexpected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	s, err := b.Open(ctx, server.URL+"/live.mp3")
	if s != nil {
		t.Fatal("expected no stream")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Open took %v after cancel", elapsed)
	}
}

func TestBackendOpen_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	b := NewBackend(server.Client())
	b.newOutput = func(io.Reader) (output, error) {
		t.Error("no output should be created for a failed attach")
		return nil, errors.New("unexpected")
	}

	_, err := b.Open(context.Background(), server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusGone {
		t.Errorf("expected 410 StatusError, got %v", err)
	}
}

func TestStream_CloseTwice(t *testing.T) {
	b, closer, outputs := testBackend(t, func(context.Context) beep.Streamer {
		return &constStreamer{left: 0.1, right: 0.1, n: 1 << 30}
	})

	s, err := b.Open(context.Background(), "http://radio.test/live")
	if err != nil {
		t.Fatal(err)
	}
	out := <-outputs
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}

	waitDone(t, s)
	if err := s.Err(); err != nil {
		t.Errorf("expected no error after Close, got %v", err)
	}
	if !out.isClosed() {
		t.Error("expected output to be closed")
	}
	if n := closer.n.Load(); n != 1 {
		t.Errorf("expected source closed once, got %d", n)
	}
	if err := s.Play(); err == nil {
		t.Error("expected Play on a closed stream to fail")
	}
}

func TestStream_PlayAfterEnd(t *testing.T) {
	dropped := errors.New("connection reset by peer")
	b, _, _ := testBackend(t, func(context.Context) beep.Streamer {
		return &constStreamer{n: 10, err: dropped}
	})

	s, err := b.Open(context.Background(), "http://radio.test/live")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, s)

	if !errors.Is(s.Err(), dropped) {
		t.Errorf("Err = %v, want %v", s.Err(), dropped)
	}
	if err := s.Play(); !errors.Is(err, dropped) {
		t.Errorf("Play after end = %v, want %v", err, dropped)
	}
}

func TestStream_Stall(t *testing.T) {
	b, _, _ := testBackend(t, func(ctx context.Context) beep.Streamer {
		return &stuckStreamer{ctx: ctx}
	}, WithStallTimeout(50*time.Millisecond))

	s, err := b.Open(context.Background(), "http://radio.test/live")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Paused streams are allowed to sit without data.
	select {
	case <-s.Done():
		t.Fatalf("paused stream ended: %v", s.Err())
	case <-time.After(200 * time.Millisecond):
	}

	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, s)
	if !errors.Is(s.Err(), ErrStalled) {
		t.Errorf("expected ErrStalled, got %v", s.Err())
	}
}

func TestStream_FlowingStreamDoesNotStall(t *testing.T) {
	b, _, _ := testBackend(t, func(context.Context) beep.Streamer {
		return &constStreamer{n: 1 << 30}
	}, WithStallTimeout(50*time.Millisecond))

	s, err := b.Open(context.Background(), "http://radio.test/live")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
		t.Fatalf("flowing stream ended: %v", s.Err())
	case <-time.After(250 * time.Millisecond):
	}
}

func TestStream_StallCheckDisabled(t *testing.T) {
	b, _, _ := testBackend(t, func(ctx context.Context) beep.Streamer {
		return &stuckStreamer{ctx: ctx}
	}, WithStallTimeout(0))

	s, err := b.Open(context.Background(), "http://radio.test/live")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Done():
		t.Fatalf("stream ended with the check disabled: %v", s.Err())
	case <-time.After(150 * time.Millisecond):
	}

	// Close cancels the request, which releases the stuck read.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, s)
}
