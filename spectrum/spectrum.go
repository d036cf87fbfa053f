// Package spectrum computes coarse per-band energy snapshots for visualizers.
//
// The numbers are advisory: they are meant to make bars move, not to measure
// audio. When no real samples are available, Synthetic produces a plausible
// sequence of the same length so visualizers never special-case "no data".
package spectrum

import (
	"math"
	"math/cmplx"
	"math/rand/v2"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// FFTSize is the analysis window length in samples.
	FFTSize = 256
	// DefaultBands is the number of values a sample holds.
	DefaultBands = 20

	minDecibels = -100.0
	maxDecibels = -30.0
)

// Bands returns n band values in 0..255 computed from the most recent
// samples. Fewer than FFTSize samples are zero-padded at the front.
func Bands(samples []float64, n int) []float64 {
	if n <= 0 {
		n = DefaultBands
	}

	window := make([]float64, FFTSize)
	offset := FFTSize - len(samples)
	if offset < 0 {
		samples = samples[-offset:]
		offset = 0
	}
	for i, s := range samples {
		window[offset+i] = s * blackman(offset+i, FFTSize)
	}

	coeffs := fft.FFTReal(window)
	bins := make([]float64, FFTSize/2)
	for i := range bins {
		mag := cmplx.Abs(coeffs[i]) / FFTSize
		bins[i] = toByteScale(mag)
	}

	out := make([]float64, n)
	bucket := len(bins) / n
	if bucket == 0 {
		bucket = 1
	}
	for b := 0; b < n; b++ {
		var sum float64
		var count int
		for j := 0; j < bucket; j++ {
			idx := b*bucket + j
			if idx >= len(bins) {
				break
			}
			sum += bins[idx]
			count++
		}
		if count > 0 {
			out[b] = sum / float64(count)
		}
	}
	return out
}

// Synthetic returns n random values: up to 80 while playing, up to 10 when idle.
func Synthetic(n int, playing bool) []float64 {
	if n <= 0 {
		n = DefaultBands
	}
	ceiling := 10.0
	if playing {
		ceiling = 80.0
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = rand.Float64() * ceiling
	}
	return out
}

func blackman(i, size int) float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	x := 2 * math.Pi * float64(i) / float64(size-1)
	return a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
}

// toByteScale maps a linear magnitude from [minDecibels, maxDecibels] onto 0..255.
func toByteScale(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	scaled := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	return math.Max(0, math.Min(255, scaled))
}
