// Package biquad implements a second-order IIR filter section in
// direct-form-II-transposed, with Butterworth-prototype lowpass and highpass
// coefficient design normalized by the cutoff-to-sample-rate ratio.
//
// This generalizes the private biquad/biquadState pair the K-weighting meter
// builds for a single fixed pair of filters (a high-shelf pre-filter and an
// RLB high-pass) into a reusable lowpass/highpass design usable at any cutoff
// ratio, for cascading into steeper multi-section filters.
package biquad

import "math"

// butterworthQ is 1/sqrt(2), the Q factor of a maximally-flat second-order
// Butterworth prototype.
const butterworthQ = 0.70710678118654752440

// Coefficients holds a normalized (a0 == 1) direct-form-II-transposed section.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// State holds the two delay registers of one DF2T section.
type State struct {
	z1, z2 float64
}

// Lowpass designs a Butterworth-prototype lowpass section. ratio is
// cutoff frequency divided by sample rate, in (0, 0.5).
func Lowpass(ratio float64) Coefficients {
	omega := 2 * math.Pi * ratio
	cosW := math.Cos(omega)
	alpha := math.Sin(omega) / (2 * butterworthQ)

	a0 := 1 + alpha
	b0 := (1 - cosW) / 2
	b1 := 1 - cosW

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b0 / a0,
		A1: (-2 * cosW) / a0,
		A2: (1 - alpha) / a0,
	}
}

// Highpass designs a Butterworth-prototype highpass section. ratio is
// cutoff frequency divided by sample rate, in (0, 0.5).
func Highpass(ratio float64) Coefficients {
	omega := 2 * math.Pi * ratio
	cosW := math.Cos(omega)
	alpha := math.Sin(omega) / (2 * butterworthQ)

	a0 := 1 + alpha
	b0 := (1 + cosW) / 2
	b1 := -(1 + cosW)

	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b0 / a0,
		A1: (-2 * cosW) / a0,
		A2: (1 - alpha) / a0,
	}
}

// Process filters a single sample through the section, updating state in place.
func (s *State) Process(c *Coefficients, in float64) float64 {
	out := c.B0*in + s.z1
	s.z1 = c.B1*in - c.A1*out + s.z2
	s.z2 = c.B2*in - c.A2*out

	return out
}

// ApplyBuffer filters samples in place, stride samples apart starting at
// index 0, mirroring the original biquad_apply_buffer signature.
func (s *State) ApplyBuffer(c *Coefficients, samples []float64, stride int) {
	for i := 0; i < len(samples); i += stride {
		samples[i] = s.Process(c, samples[i])
	}
}

// Cascade chains two sections sharing one set of coefficients, giving the
// ~24 dB/oct rolloff the envelope extractor (C3) wants from each band (two
// cascaded second-order sections per highpass/lowpass, spec §4.1).
type Cascade struct {
	first, second State
}

// Process runs a single sample through both sections in series.
func (c *Cascade) Process(coeffs *Coefficients, in float64) float64 {
	return c.second.Process(coeffs, c.first.Process(coeffs, in))
}
