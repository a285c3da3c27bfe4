// Package analysis implements the window analyzer (C4): every step_samples
// input samples it consumes the trailing 5-second level buffer and emits one
// 8-byte AnalysisResult (range, cycle count, zone occupancies, attack ratio,
// peak jitter), plus the tensor index that result maps to (clamped later,
// by tensor.Get).
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/dbry/skipper/internal/skipper/fault"
)

// MaxCycles bounds the trigger list; on overflow the cycle count backs off
// by two rather than growing the list further (spec §4.2.3).
const MaxCycles = 128

// Result is the on-disk and in-memory layout of one window's features,
// exactly 8 bytes, matching spec §3's AnalysisResult.
type Result struct {
	RangeDB     uint8
	Cycles      uint8
	LowThird    uint8
	MidThird    uint8
	HighThird   uint8
	AttackRatio uint8
	PeakJitter  uint8
	Spare       uint8
}

// Marshal packs the result into its 8-byte on-disk layout.
func (r Result) Marshal() [8]byte {
	return [8]byte{
		r.RangeDB, r.Cycles, r.LowThird, r.MidThird,
		r.HighThird, r.AttackRatio, r.PeakJitter, r.Spare,
	}
}

// Unmarshal reads a Result from its 8-byte on-disk layout.
func Unmarshal(b [8]byte) Result {
	return Result{
		RangeDB:     b[0],
		Cycles:      b[1],
		LowThird:    b[2],
		MidThird:    b[3],
		HighThird:   b[4],
		AttackRatio: b[5],
		PeakJitter:  b[6],
		Spare:       b[7],
	}
}

// TensorIndex returns the 4-D coordinate this result addresses (range_dB,
// cycles>>1, low_third>>4, mid_third>>4). The values are not clamped here:
// the tensor package's Get saturates each one to its axis maximum, and
// exposing the coordinate here keeps the mapping documented in one place
// next to the fields it reads.
func (r Result) TensorIndex() (h, i, j, k int) {
	return int(r.RangeDB), int(r.Cycles) >> 1, int(r.LowThird) >> 4, int(r.MidThird) >> 4
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// normalizeFraction applies the f' = f*((1-f)*0.75 + 1) normalization spec
// §4.2.2 uses to spread zone-occupancy fractions away from their extremes
// before scaling to a byte.
func normalizeFraction(f float64) float64 {
	return f * ((1-f)*0.75 + 1)
}

// Analyze consumes the trailing window of level samples (levels[0] is the
// oldest, the window is len(levels) samples long) and produces one Result.
func Analyze(levels []float64) (Result, error) {
	n := len(levels)

	peak, trough := floats.Max(levels), floats.Min(levels)

	peakToTroughDB := math.Log10(peak/trough) * 10.0
	squareRoot := math.Sqrt(peak / trough)
	cubeRoot := math.Cbrt(peak / trough)

	var result Result

	result.RangeDB = uint8(clamp(roundHalfUp(peakToTroughDB), 0, 95))

	var zones [3]int

	var (
		prevPeak, prevTrough       = levels[0], levels[0]
		prevPeakPos, prevTroughPos = 0, 0
		cycles                     int
		triggers                   [MaxCycles]int
	)

	for i := 1; i < n; i++ {
		v := levels[i]

		var zone int

		switch {
		case v > peak/cubeRoot:
			zone = 2
		case v > trough*cubeRoot:
			zone = 1
		default:
			zone = 0
		}

		zones[zone]++

		if cycles&1 == 1 {
			// odd phase: searching for a peak, trigger on the fall from it.
			if v > prevPeak {
				prevPeak = v
				prevPeakPos = i
			} else if v < prevPeak/squareRoot {
				triggers[cycles] = prevPeakPos
				cycles++
				prevTrough = v

				if cycles == MaxCycles {
					cycles -= 2
				}
			}
		} else {
			// even phase: searching for a trough, trigger on the rise from it.
			if v < prevTrough {
				prevTrough = v
				prevTroughPos = i
			} else if v > prevTrough*squareRoot {
				triggers[cycles] = prevTroughPos
				cycles++
				prevPeak = v
			}
		}
	}

	attackRatio := 0.5

	if cycles >= 4 {
		var attackCount, attackTime, decayCount, decayTime int

		for i := 2; i < cycles; i++ {
			if i&1 == 1 {
				attackTime += triggers[i] - triggers[i-1]
				attackCount++
			} else {
				decayTime += triggers[i] - triggers[i-1]
				decayCount++
			}
		}

		if attackCount == 0 || decayCount == 0 {
			return Result{}, fmt.Errorf("%w: cycles=%d attack_count=%d decay_count=%d", fault.ErrDegenerateWindow, cycles, attackCount, decayCount)
		}

		attackRatio = float64(attackTime) / float64(attackTime+decayTime)

		if attackCount != decayCount {
			attackRatio *= float64(attackCount+decayCount) / (float64(attackCount) * 2.0)
		}
	}

	peakJitter := 1.0

	if cycles >= 6 {
		numPeaks := cycles >> 1
		period := float64(triggers[numPeaks*2-1]-triggers[1]) / float64(numPeaks-1)

		var errSum float64

		for i := 3; i < cycles-2; i += 2 {
			prediction := float64(triggers[1]) + period*float64(i>>1)
			errSum += math.Abs(float64(triggers[i]) - prediction)
		}

		peakJitter = (errSum / float64(numPeaks-2)) / period

		if peakJitter > 1.0 {
			peakJitter = 1.0
		}
	}

	lowFraction := normalizeFraction(float64(zones[0]) / float64(n))
	midFraction := normalizeFraction(float64(zones[1]) / float64(n))
	highFraction := normalizeFraction(float64(zones[2]) / float64(n))

	result.LowThird = uint8(clamp(roundHalfUp(lowFraction*255.0), 0, 255))
	result.MidThird = uint8(clamp(roundHalfUp(midFraction*255.0), 0, 255))
	result.HighThird = uint8(clamp(roundHalfUp(highFraction*255.0), 0, 255))
	result.AttackRatio = uint8(clamp(roundHalfUp(attackRatio*255.0), 0, 255))
	result.PeakJitter = uint8(clamp(roundHalfUp(peakJitter*255.0), 0, 255))
	result.Cycles = uint8(clamp(cycles, 0, 255))

	return result, nil
}

// Diagnostic renders the periodic verbose line recovered from the original
// analyzer's fprintf, gated by the caller on
// (sampleIndex-windowLen) % (sampleRate*period) == 0.
func (r Result) Diagnostic(startMin, startSec, endMin, endSec int) string {
	return fmt.Sprintf(
		"%02d:%02d-%02d:%02d: peak/trough = %d dB, cycles = %d, zones = %.3f, %.3f, %.3f, attack = %.3f, jitter = %.3f",
		startMin, startSec, endMin, endSec,
		r.RangeDB, r.Cycles,
		float64(r.LowThird)/255.0, float64(r.MidThird)/255.0, float64(r.HighThird)/255.0,
		float64(r.AttackRatio)/255.0, float64(r.PeakJitter)/255.0,
	)
}
