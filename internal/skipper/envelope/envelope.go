// Package envelope implements the per-sample level-envelope extractor (C3):
// mono downmix, TPDF-like dither, a cascaded highpass/lowpass band filter,
// and the sliding-sum squared-level ring whose mean is the instantaneous
// level the window analyzer (C4) consumes.
package envelope

import "github.com/dbry/skipper/internal/skipper/biquad"

const (
	highpassHz = 250.0
	lowpassHz  = 2000.0

	// ditherSeed matches the original generator's fixed constant so output
	// is bitwise reproducible across runs for fixed input and options.
	ditherSeed = 0x31415926

	levelWindowMS = 50
)

// Extractor holds the running filter and ring state for one channel of
// audio across the lifetime of a stream.
type Extractor struct {
	dither uint32

	highpass biquad.Cascade
	lowpass  biquad.Cascade

	hpCoeffs biquad.Coefficients
	lpCoeffs biquad.Coefficients

	ring        []float64
	sampleCount uint64
	sumSquares  float64
}

// New builds an Extractor for the given sample rate, priming its ring with
// dithered white noise passed through the same filters so the level is
// well-defined and nonzero from the first real sample (spec §4.1).
func New(sampleRate int) *Extractor {
	e := &Extractor{
		dither:   ditherSeed,
		hpCoeffs: biquad.Highpass(highpassHz / float64(sampleRate)),
		lpCoeffs: biquad.Lowpass(lowpassHz / float64(sampleRate)),
	}

	ringLen := (sampleRate*levelWindowMS + 500) / 1000
	e.ring = make([]float64, ringLen)

	e.prime()

	return e
}

// RingLen reports the length of the squared-level ring (L_ring in spec §3).
func (e *Extractor) RingLen() int { return len(e.ring) }

func (e *Extractor) nextDither() float64 {
	e.dither = (e.dither<<4 - e.dither) ^ 1

	return float64(int32(e.dither) >> 26)
}

func (e *Extractor) prime() {
	noise := make([]float64, len(e.ring))
	for i := range noise {
		noise[i] = e.nextDither()
	}

	for i := range noise {
		noise[i] = e.highpass.Process(&e.hpCoeffs, noise[i])
	}

	for i := range noise {
		noise[i] = e.lowpass.Process(&e.lpCoeffs, noise[i])
	}

	copy(e.ring, noise)

	var sum float64
	for _, v := range e.ring {
		sum += v * v
	}

	e.sumSquares = sum
}

// Process mixes one frame of raw samples (length 1 for mono, 2 for stereo,
// arithmetic mean for the downmix) to a dithered, band-passed mono value,
// folds it into the squared-level ring, and returns both the filtered
// sample (for debug output modes) and the instantaneous mean-square level.
func (e *Extractor) Process(frame []int16) (filtered, level float64) {
	var mono float64

	if len(frame) == 2 {
		mono = (float64(frame[0]) + float64(frame[1])) / 2.0
	} else {
		mono = float64(frame[0])
	}

	mono += e.nextDither()

	mono = e.highpass.Process(&e.hpCoeffs, mono)
	mono = e.lowpass.Process(&e.lpCoeffs, mono)

	ringLen := len(e.ring)
	idx := int(e.sampleCount % uint64(ringLen))

	if idx == 0 {
		e.ring[0] = mono
		sum := mono * mono

		for i := 1; i < ringLen; i++ {
			sum += e.ring[i] * e.ring[i]
		}

		e.sumSquares = sum
	} else {
		e.sumSquares -= e.ring[idx] * e.ring[idx]
		e.ring[idx] = mono
		e.sumSquares += e.ring[idx] * e.ring[idx]
	}

	e.sampleCount++

	return mono, e.sumSquares / float64(ringLen)
}
