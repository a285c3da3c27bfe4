package builder_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbry/skipper/internal/skipper/analysis"
	"github.com/dbry/skipper/internal/skipper/builder"
)

func record(h, cycles, low, mid uint8) [8]byte {
	r := analysis.Result{RangeDB: h, Cycles: cycles, LowThird: low, MidThird: mid}
	return r.Marshal()
}

func TestLoadHistogramCountsEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 10; i++ {
		b := record(uint8(i), uint8(i), 0, 0)
		buf.Write(b[:])
	}

	h, err := builder.LoadHistogram(&buf, false, 4)
	require.NoError(t, err)
	assert.Equal(t, 10, h.Windows())
}

// TestLoadHistogramAlternateSplit covers spec.md §8 scenario 4's
// disjoint-half setup: with alternate set, only odd-indexed records
// contribute (at weight 2), leaving the even half entirely for held-out
// evaluation.
func TestLoadHistogramAlternateSplit(t *testing.T) {
	var buf bytes.Buffer
	// 4 identical records at the same cell: indices 0,1,2,3.
	for i := 0; i < 4; i++ {
		b := record(5, 5, 5, 5)
		buf.Write(b[:])
	}

	h, err := builder.LoadHistogram(&buf, true, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Windows())
	// Only odd indices (1, 3) contribute, each at weight 2. The record's raw
	// fields (5, 5, 5, 5) address cell (5, 5>>1, 5>>4, 5>>4) = (5, 2, 0, 0).
	assert.Equal(t, 4, h.At(5, 2, 0, 0))
}

func TestLoadHistogramClampsToDims(t *testing.T) {
	var buf bytes.Buffer
	b := record(40, 20, 10, 10)
	buf.Write(b[:])

	h, err := builder.LoadHistogram(&buf, false, 1)
	require.NoError(t, err)
	// With dims=1, axes 2-4 collapse to size 1: every record lands at
	// (h, 0, 0, 0) regardless of its cycles/low/mid fields.
	assert.Equal(t, 1, h.At(40, 0, 0, 0))
	assert.Equal(t, 0, h.At(40, 20, 10, 10))
}

func TestSummarizeFieldBasicStats(t *testing.T) {
	buckets := make([]int, 256)
	buckets[10] = 2
	buckets[20] = 2
	buckets[30] = 1

	s := builder.SummarizeField(buckets)

	assert.Equal(t, 10, s.Min)
	assert.Equal(t, 30, s.Max)
	assert.InDelta(t, 18.0, s.Mean, 1e-9) // (10*2+20*2+30*1)/5
	assert.Equal(t, 10, s.ModeLow)
	assert.Equal(t, 20, s.ModeHigh) // tied mode between buckets 10 and 20
}

func TestSummarizeFieldEmptyIsZeroValue(t *testing.T) {
	buckets := make([]int, 256)

	s := builder.SummarizeField(buckets)
	assert.Equal(t, -1, s.Min)
	assert.Equal(t, -1, s.Max)
	assert.Nil(t, s.Bands)
}

func TestSummarizeFieldMedianInterpolates(t *testing.T) {
	buckets := make([]int, 256)
	buckets[0] = 1
	buckets[10] = 1

	s := builder.SummarizeField(buckets)
	// hits=2, half=1.0: bucket 0 (seen=0, n=1) satisfies 0+1 > 1.0? no
	// (1 > 1.0 is false), so it moves to bucket 10 (seen=1, n=1): 1+1>1.0,
	// median = 10 - 0.5 + (1.0-1)/1 = 9.5.
	assert.InDelta(t, 9.5, s.Median, 1e-9)
}

func TestSummarizeFieldBandsCoverTargetPercent(t *testing.T) {
	buckets := make([]int, 256)
	for v := 0; v < 100; v++ {
		buckets[v] = 1
	}

	s := builder.SummarizeField(buckets)
	require.NotNil(t, s.Bands)

	band50, ok := s.Bands[50]
	require.True(t, ok)
	// A symmetric trim around a flat distribution keeps roughly half.
	assert.GreaterOrEqual(t, band50.Percent, 45.0)
	assert.LessOrEqual(t, band50.Percent, 55.0)

	band98, ok := s.Bands[98]
	require.True(t, ok)
	assert.GreaterOrEqual(t, band98.Percent, band50.Percent)
}

func histWith(cells map[[4]int]int, windows int, dims int) *builder.Histogram {
	var buf bytes.Buffer

	for cell, count := range cells {
		for n := 0; n < count; n++ {
			// Encode the cell coordinates as the raw fields TensorIndex
			// maps back to that cell (cycles>>1, low>>4, mid>>4).
			b := record(uint8(cell[0]), uint8(cell[1]<<1), uint8(cell[2]<<4), uint8(cell[3]<<4))
			buf.Write(b[:])
		}
	}

	// Pad with a filler cell far outside the small indices the tests above
	// exercise, so padding never pollutes the cell under test.
	for buf.Len() < windows*8 {
		b := record(47, 23, 15, 15)
		buf.Write(b[:])
	}

	h, _ := builder.LoadHistogram(&buf, false, dims)

	return h
}

// TestFuseMusicOnlyCellScoresPositive covers spec.md §4.5's fusion rule:
// a cell with only music hits is unambiguous and scores the maximum +99.
func TestFuseMusicOnlyCellScoresPositive(t *testing.T) {
	music := histWith(map[[4]int]int{{0, 0, 0, 0}: 5}, 5, 4)
	talk := histWith(map[[4]int]int{}, 5, 4)

	ds := builder.NewDataset(music, talk, 4)
	tbl := ds.Fuse()

	assert.Equal(t, int8(99), tbl.Get(0, 0, 0, 0))
}

// TestFuseTalkOnlyCellScoresNegative mirrors the above for a talk-only cell.
func TestFuseTalkOnlyCellScoresNegative(t *testing.T) {
	music := histWith(map[[4]int]int{}, 5, 4)
	talk := histWith(map[[4]int]int{{0, 0, 0, 0}: 5}, 5, 4)

	ds := builder.NewDataset(music, talk, 4)
	tbl := ds.Fuse()

	assert.Equal(t, int8(-99), tbl.Get(0, 0, 0, 0))
}

// TestFuseEvenSplitScoresNearZero covers the normalized-rate branch: equal
// relative rates in both classes should fuse close to zero.
func TestFuseEvenSplitScoresNearZero(t *testing.T) {
	music := histWith(map[[4]int]int{{1, 1, 1, 1}: 10}, 100, 4)
	talk := histWith(map[[4]int]int{{1, 1, 1, 1}: 10}, 100, 4)

	ds := builder.NewDataset(music, talk, 4)
	tbl := ds.Fuse()

	assert.Equal(t, int8(0), tbl.Get(1, 1, 1, 1))
}

// TestBorderFillOnlyFillsEmptyCells covers spec.md §8 property 8: a
// populated cell's value must never change across a border-fill pass, only
// empty (zero) neighbors acquire a value.
func TestBorderFillOnlyFillsEmptyCells(t *testing.T) {
	music := histWith(map[[4]int]int{{5, 5, 5, 5}: 3}, 3, 4)
	talk := histWith(map[[4]int]int{}, 3, 4)

	ds := builder.NewDataset(music, talk, 4)
	tbl := ds.Fuse()

	// The seeded cell keeps its fused value.
	assert.Equal(t, int8(99), tbl.Get(5, 5, 5, 5))

	// An adjacent empty cell is extrapolated from its neighborhood (the
	// only non-zero neighbor is the seeded cell itself), landing on the
	// same value via the mean-of-neighbors rule.
	assert.Equal(t, int8(99), tbl.Get(5, 5, 5, 6))
}

func TestNewDatasetClampsDims(t *testing.T) {
	music := histWith(map[[4]int]int{}, 1, 4)
	talk := histWith(map[[4]int]int{}, 1, 4)

	ds := builder.NewDataset(music, talk, 0)
	assert.Equal(t, 4, ds.Dims)

	ds = builder.NewDataset(music, talk, 9)
	assert.Equal(t, 4, ds.Dims)

	ds = builder.NewDataset(music, talk, 2)
	assert.Equal(t, 2, ds.Dims)
}

// TestEvaluateAlternateOnlyCountsEvenHalf covers the held-out half of
// spec.md §8 scenario 4's alternate train/test split.
func TestEvaluateAlternateOnlyCountsEvenHalf(t *testing.T) {
	music := histWith(map[[4]int]int{{2, 2, 2, 2}: 2}, 2, 4)
	talk := histWith(map[[4]int]int{}, 2, 4)

	ds := builder.NewDataset(music, talk, 4)
	tbl := ds.Fuse()

	var buf bytes.Buffer
	for i := 0; i < 4; i++ {
		b := record(2, 2, 2, 2)
		buf.Write(b[:])
	}

	split, err := builder.Evaluate(&buf, tbl, true)
	require.NoError(t, err)
	assert.Equal(t, 4, split.Windows)
	// Only the even-indexed half (0, 2) is tallied.
	assert.Equal(t, 2, split.MusicHits)
	assert.Equal(t, 0, split.TalkHits)
}
