package analysis_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dbry/skipper/internal/skipper/analysis"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

func sineLevels(n int, period float64, amplitude, offset float64) []float64 {
	levels := make([]float64, n)
	for i := range levels {
		levels[i] = offset + amplitude*(1+math.Sin(2*math.Pi*float64(i)/period))/2
	}

	return levels
}

func TestAnalyzeToneLowCycles(t *testing.T) {
	// One full swing across the whole 5s window: a handful of triggers at
	// most, unlike fast wideband noise which registers many more.
	levels := sineLevels(220500, 220500, 10, 1)

	result, err := analysis.Analyze(levels)
	require.NoError(t, err)

	assert.Less(t, int(result.Cycles), 10, "a slow regular tone should register few cycles")
}

// TestTensorLookupClamping covers spec.md §8 property 4: for any
// AnalysisResult, tensor.Get's lookup is always in-bounds, regardless of
// the raw byte field values TensorIndex derives it from.
func TestTensorLookupClamping(t *testing.T) {
	tbl := tensor.New()

	rapid.Check(t, func(rt *rapid.T) {
		r := analysis.Result{
			RangeDB:  uint8(rapid.IntRange(0, 255).Draw(rt, "range")),
			Cycles:   uint8(rapid.IntRange(0, 255).Draw(rt, "cycles")),
			LowThird: uint8(rapid.IntRange(0, 255).Draw(rt, "low")),
			MidThird: uint8(rapid.IntRange(0, 255).Draw(rt, "mid")),
		}

		h, i, j, k := r.TensorIndex()

		// Get must not panic for any derived coordinate: it clamps h to
		// [0,47], i to [0,23], j/k to [0,15] before indexing.
		assert.NotPanics(rt, func() { tbl.Get(h, i, j, k) })
	})
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := analysis.Result{
			RangeDB:     uint8(rapid.IntRange(0, 255).Draw(rt, "range")),
			Cycles:      uint8(rapid.IntRange(0, 255).Draw(rt, "cycles")),
			LowThird:    uint8(rapid.IntRange(0, 255).Draw(rt, "low")),
			MidThird:    uint8(rapid.IntRange(0, 255).Draw(rt, "mid")),
			HighThird:   uint8(rapid.IntRange(0, 255).Draw(rt, "high")),
			AttackRatio: uint8(rapid.IntRange(0, 255).Draw(rt, "attack")),
			PeakJitter:  uint8(rapid.IntRange(0, 255).Draw(rt, "jitter")),
		}

		got := analysis.Unmarshal(r.Marshal())
		assert.Equal(rt, r, got)
	})
}

func TestAnalyzeConstantLevelIsDegenerateOrLowRange(t *testing.T) {
	levels := make([]float64, 220500)
	for i := range levels {
		levels[i] = 1.0
	}

	result, err := analysis.Analyze(levels)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), result.RangeDB)
}
