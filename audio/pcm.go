package audio

import (
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
)

// frameSize is one signed 16-bit little-endian stereo frame.
const frameSize = 4

// pcmReader renders a beep.Streamer as interleaved s16le stereo, scaling by
// a gain that may change while it is being read.
type pcmReader struct {
	s    beep.Streamer
	gain atomic.Uint64
	buf  [][2]float64
	// onEnd is called once with the streamer's error when it runs dry.
	onEnd func(error)
	ended atomic.Bool
	// lastData is the UnixNano time of the last Read that produced frames.
	lastData atomic.Int64
}

func newPCMReader(s beep.Streamer, gain float64, onEnd func(error)) *pcmReader {
	r := &pcmReader{s: s, onEnd: onEnd}
	r.setGain(gain)
	r.touch()
	return r
}

// touch restarts the idle clock.
func (r *pcmReader) touch() {
	r.lastData.Store(time.Now().UnixNano())
}

// idle reports how long it has been since the last frames were produced.
func (r *pcmReader) idle() time.Duration {
	return time.Since(time.Unix(0, r.lastData.Load()))
}

func (r *pcmReader) setGain(g float64) {
	r.gain.Store(math.Float64bits(g))
}

func (r *pcmReader) getGain() float64 {
	return math.Float64frombits(r.gain.Load())
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if r.ended.Load() {
		return 0, io.EOF
	}

	frames := len(p) / frameSize
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([][2]float64, frames)
	}
	buf := r.buf[:frames]

	n, ok := r.s.Stream(buf)
	if n > 0 {
		r.touch()
	}
	gain := r.getGain()
	for i := 0; i < n; i++ {
		putSample(p[i*frameSize:], buf[i][0]*gain)
		putSample(p[i*frameSize+2:], buf[i][1]*gain)
	}

	if !ok || n == 0 {
		if r.ended.CompareAndSwap(false, true) && r.onEnd != nil {
			r.onEnd(r.s.Err())
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n * frameSize, nil
}

func putSample(p []byte, v float64) {
	v = max(-1, min(1, v))
	s := int16(v * math.MaxInt16)
	p[0] = byte(s)
	p[1] = byte(s >> 8)
}
