// Package fixtures generates synthetic raw PCM buffers for skipper's CLI
// scenario tests (spec.md §8's S1-S6), built in-package rather than reusing
// agar's lossless-audio generators: those target compressed-file
// authenticity checks, not mono/stereo PCM classification.
package fixtures

import (
	"encoding/binary"
	"math"
	"math/rand"
)

// PinkNoiseStereo returns seconds of uniform-ish band-limited noise,
// interleaved stereo 16-bit little-endian, generated from a fixed seed so
// fixtures are reproducible across test runs.
func PinkNoiseStereo(seconds, sampleRate int) []byte {
	n := seconds * sampleRate
	buf := make([]byte, n*4)

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test fixture, not a security context

	var state float64

	for i := 0; i < n; i++ {
		white := rng.Float64()*2 - 1
		state = state*0.98 + white*0.02
		sample := int16(clampFloat(state * 16000))

		binary.LittleEndian.PutUint16(buf[i*4:], uint16(sample))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(sample))
	}

	return buf
}

// Tone returns seconds of a pure sine tone at freqHz, stereo 16-bit PCM —
// a music-like signal (low cycle count, narrow dynamic range).
func Tone(seconds, sampleRate int, freqHz float64) []byte {
	n := seconds * sampleRate
	buf := make([]byte, n*4)

	for i := 0; i < n; i++ {
		v := math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate))
		sample := int16(clampFloat(v * 16000))

		binary.LittleEndian.PutUint16(buf[i*4:], uint16(sample))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(sample))
	}

	return buf
}

// BandLimitedNoise returns seconds of wideband random noise, stereo 16-bit
// PCM — a talk-like signal (high cycle count, irregular jitter).
func BandLimitedNoise(seconds, sampleRate int) []byte {
	n := seconds * sampleRate
	buf := make([]byte, n*4)

	rng := rand.New(rand.NewSource(2)) //nolint:gosec // deterministic test fixture, not a security context

	for i := 0; i < n; i++ {
		sample := int16(clampFloat((rng.Float64()*2 - 1) * 16000))

		binary.LittleEndian.PutUint16(buf[i*4:], uint16(sample))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(sample))
	}

	return buf
}

func clampFloat(v float64) float64 {
	if v > 32767 {
		return 32767
	}

	if v < -32768 {
		return -32768
	}

	return v
}
