package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"fiveradio/model"
	"fiveradio/spectrum"

	"github.com/rs/zerolog/log"
)

const (
	DefaultVolume        = 0.7
	DefaultAttachTimeout = 20 * time.Second
)

var (
	ErrNoStreamURL   = errors.New("no stream URL available for station")
	ErrAttachTimeout = errors.New("timed out attaching stream")
)

// Status is a point-in-time copy of the controller's observable state.
type Status struct {
	State   State          `json:"state"`
	Playing bool           `json:"isPlaying"`
	Station *model.Station `json:"station,omitempty"`
	Volume  float64        `json:"volume"`
	Muted   bool           `json:"isMuted"`
}

// Controller is the single owner of what is audible. It holds at most one
// attached stream; starting a station tears the previous one down first.
//
// One Controller is meant to live for the whole process and be handed to
// every skin explicitly.
type Controller struct {
	backend       Backend
	attachTimeout time.Duration
	bands         int

	mu            sync.Mutex
	state         State
	station       *model.Station
	stream        Stream
	volume        float64
	muted         bool
	gen           uint64
	cancelAttempt context.CancelFunc

	// pending events are delivered in the order state changed, by whichever
	// caller holds the dispatching turn.
	pending     []Event
	dispatching bool
	observers   observers
}

// Option configures a Controller.
type Option func(*Controller)

// WithVolume sets the initial volume, clamped to 0..1.
func WithVolume(v float64) Option {
	return func(c *Controller) { c.volume = clampVolume(v) }
}

// WithMuted sets the initial mute flag.
func WithMuted(muted bool) Option {
	return func(c *Controller) { c.muted = muted }
}

// WithAttachTimeout bounds how long PlayStation waits for a stream. Zero
// waits until the backend gives up.
func WithAttachTimeout(d time.Duration) Option {
	return func(c *Controller) { c.attachTimeout = d }
}

// WithSpectrumBands sets the length of spectrum samples.
func WithSpectrumBands(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.bands = n
		}
	}
}

// NewController creates an idle controller.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:       backend,
		attachTimeout: DefaultAttachTimeout,
		bands:         spectrum.DefaultBands,
		volume:        DefaultVolume,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlayStation stops whatever is playing and attaches st. It returns once the
// new stream is playing or has failed; failures are reported as ErrorEvent
// and StateError, never returned. A later PlayStation or Stop supersedes an
// attempt still in progress, whose result is then discarded silently.
func (c *Controller) PlayStation(ctx context.Context, st model.Station) {
	c.mu.Lock()
	var evs []Event
	if ev, changed := c.resetLocked(); changed {
		evs = append(evs, ev)
	}

	station := st
	c.station = &station
	gen := c.gen
	evs = append(evs, StationChanged{Station: st})

	url := st.PlaybackURL()
	if url == "" {
		evs = append(evs, c.failLocked(ErrNoStreamURL, fmt.Sprintf("No stream URL available for %s", st.Name))...)
		c.unlockAndEmit(evs...)
		return
	}

	c.state = StateLoading
	evs = append(evs, c.stateEventLocked())

	attemptCtx, cancel := context.WithCancel(ctx)
	timeout := c.attachTimeout
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		attemptCtx, cancelTimeout = context.WithTimeout(attemptCtx, timeout)
		cancelAttempt := cancel
		cancel = func() {
			cancelTimeout()
			cancelAttempt()
		}
	}
	c.cancelAttempt = cancel
	c.unlockAndEmit(evs...)

	log.Info().Str("station", st.Name).Str("url", url).Msg("attaching stream")
	stream, err := c.backend.Open(attemptCtx, url)
	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
		log.Debug().Str("station", st.Name).Msg("discarding superseded stream attempt")
		return
	}
	c.cancelAttempt = nil

	if err != nil {
		switch {
		case timedOut:
			err = fmt.Errorf("%w after %s", ErrAttachTimeout, timeout)
		case ctx.Err() != nil:
			c.state = StateIdle
			c.unlockAndEmit(c.stateEventLocked())
			return
		}
		log.Warn().Err(err).Str("station", st.Name).Msg("failed to attach stream")
		c.unlockAndEmit(c.failLocked(err, fmt.Sprintf("Failed to load stream for %s: %v", st.Name, err))...)
		return
	}

	stream.SetGain(c.effectiveLocked())
	if err := stream.Play(); err != nil {
		stream.Close()
		log.Warn().Err(err).Str("station", st.Name).Msg("playback rejected")
		c.unlockAndEmit(c.failLocked(err, fmt.Sprintf("Failed to play %s: %v", st.Name, err))...)
		return
	}

	c.stream = stream
	c.state = StatePlaying
	go c.watch(gen, stream)

	log.Info().Str("station", st.Name).Msg("now playing")
	c.unlockAndEmit(c.stateEventLocked())
}

// Pause pauses a playing stream. It does nothing in any other state.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying || c.stream == nil {
		c.mu.Unlock()
		return
	}
	c.stream.Pause()
	c.state = StatePaused
	c.unlockAndEmit(c.stateEventLocked())
}

// Resume restarts a paused stream without re-fetching the station. If the
// stream refuses to play the controller stays paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.state != StatePaused || c.stream == nil {
		c.mu.Unlock()
		return
	}
	if err := c.stream.Play(); err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Msg("could not resume playback")
		return
	}
	c.state = StatePlaying
	c.unlockAndEmit(c.stateEventLocked())
}

// Stop releases the stream and returns to StateIdle. The current station is
// kept for display.
func (c *Controller) Stop() {
	c.mu.Lock()
	ev, changed := c.resetLocked()
	if !changed {
		c.mu.Unlock()
		return
	}
	c.unlockAndEmit(ev)
}

// SetVolume stores v clamped to 0..1 and applies it to the active stream.
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = clampVolume(v)
	if c.stream != nil {
		c.stream.SetGain(c.effectiveLocked())
	}
	c.unlockAndEmit(VolumeChanged{Volume: c.volume})
}

// SetMuted silences output without touching the stored volume.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	if c.stream != nil {
		c.stream.SetGain(c.effectiveLocked())
	}
	c.unlockAndEmit(MuteChanged{Muted: muted})
}

// Subscribe registers fn for every future event. Callbacks run in
// registration order, with no controller lock held, and should not block.
func (c *Controller) Subscribe(fn func(Event)) SubscriptionID {
	return c.observers.add(fn)
}

// Unsubscribe removes an observer. Unknown IDs are ignored.
func (c *Controller) Unsubscribe(id SubscriptionID) {
	c.observers.remove(id)
}

// CurrentStation returns the last station handed to PlayStation.
func (c *Controller) CurrentStation() (model.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.station == nil {
		return model.Station{}, false
	}
	return *c.station, true
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether audio is currently playing.
func (c *Controller) IsPlaying() bool {
	return c.State() == StatePlaying
}

// Volume returns the stored volume in [0, 1], regardless of mute.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// IsMuted reports whether output is muted.
func (c *Controller) IsMuted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// EffectiveVolume is the level actually applied to output: 0 while muted.
func (c *Controller) EffectiveVolume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

// Snapshot returns the observable state in one read.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:   c.state,
		Playing: c.state == StatePlaying,
		Volume:  c.volume,
		Muted:   c.muted,
	}
	if c.station != nil {
		st := *c.station
		s.Station = &st
	}
	return s
}

// SpectrumSample returns an advisory per-band energy snapshot in 0..255.
// Without real samples it returns a synthetic sequence of the same length so
// visualizers always have something to draw.
func (c *Controller) SpectrumSample() []float64 {
	c.mu.Lock()
	stream := c.stream
	playing := c.state == StatePlaying
	bands := c.bands
	c.mu.Unlock()

	if a, ok := stream.(Analyser); ok {
		if samples := a.Samples(spectrum.FFTSize); len(samples) > 0 {
			return spectrum.Bands(samples, bands)
		}
	}
	return spectrum.Synthetic(bands, playing)
}

// Close stops playback and drops every observer.
func (c *Controller) Close() {
	c.Stop()
	c.observers.clear()
}

// watch turns a stream ending on its own into StateError.
func (c *Controller) watch(gen uint64, stream Stream) {
	<-stream.Done()

	c.mu.Lock()
	if c.gen != gen || c.stream != stream {
		c.mu.Unlock()
		return
	}
	c.stream = nil
	stream.Close()

	name := "station"
	if c.station != nil {
		name = c.station.Name
	}
	err := stream.Err()
	msg := fmt.Sprintf("Stream for %s ended", name)
	if err != nil {
		msg = fmt.Sprintf("Stream for %s failed: %v", name, err)
	}
	log.Warn().Err(err).Str("station", name).Msg("stream stopped unexpectedly")
	c.unlockAndEmit(c.failLocked(err, msg)...)
}

// resetLocked cancels any attach in progress, releases the stream and moves
// to StateIdle. It reports the event to emit if the state changed.
func (c *Controller) resetLocked() (Event, bool) {
	c.gen++
	if c.cancelAttempt != nil {
		c.cancelAttempt()
		c.cancelAttempt = nil
	}
	if c.stream != nil {
		c.stream.Pause()
		if err := c.stream.Close(); err != nil {
			log.Debug().Err(err).Msg("closing stream")
		}
		c.stream = nil
	}
	if c.state == StateIdle {
		return nil, false
	}
	c.state = StateIdle
	return c.stateEventLocked(), true
}

func (c *Controller) failLocked(err error, msg string) []Event {
	c.state = StateError
	ev := ErrorEvent{Message: msg, Err: err}
	if c.station != nil {
		st := *c.station
		ev.Station = &st
	}
	return []Event{c.stateEventLocked(), ev}
}

func (c *Controller) stateEventLocked() Event {
	ev := PlayStateChanged{State: c.state, Playing: c.state == StatePlaying}
	if c.station != nil {
		st := *c.station
		ev.Station = &st
	}
	return ev
}

func (c *Controller) effectiveLocked() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

// unlockAndEmit queues evs and releases c.mu. It must be called with c.mu
// held. No lock is held while observers run.
func (c *Controller) unlockAndEmit(evs ...Event) {
	c.pending = append(c.pending, evs...)
	if c.dispatching {
		c.mu.Unlock()
		return
	}

	c.dispatching = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		obs := c.observers.snapshot()
		for _, ev := range batch {
			for _, ob := range obs {
				ob.fn(ev)
			}
		}

		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
