// Package builder implements the offline tensor builder (C7): fusing two
// labeled feature histograms into a 4-D classifier and extrapolating the
// remaining empty cells via iterative neighborhood border-fill.
package builder

import (
	"io"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dbry/skipper/internal/skipper/analysis"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

const (
	dimRange  = tensor.DimRange
	dimCycles = tensor.DimCycles
	dimLow    = tensor.DimLow
	dimMid    = tensor.DimMid
)

// Histogram is a 4-D occupancy count over the tensor's index space,
// accumulated from one class's labeled AnalysisResult records.
type Histogram struct {
	counts  [dimRange * dimCycles * dimLow * dimMid]int
	windows int // total records read, including non-contributing ones
}

func flat(h, i, j, k int) int {
	return ((h*dimCycles+i)*dimLow+j)*dimMid + k
}

// reducedBins returns the effective axis sizes for a given dimension
// count, collapsing axes dims+1..4 to size 1 (spec §4.5 "Dimension
// reduction") — the same reduction NewDataset derives, but needed earlier
// here since the original clamps each record's index against the reduced
// bins at histogram-build time, not against the full tensor shape.
func reducedBins(dims int) [4]int {
	if dims < 1 || dims > 4 {
		dims = 4
	}

	bins := [4]int{dimRange, dimCycles, dimLow, dimMid}

	for axis := dims; axis < 4; axis++ {
		bins[axis] = 1
	}

	return bins
}

// add folds one AnalysisResult into the histogram at the given weight,
// clamping its index against bins (the dimension-reduced axis sizes).
func (h *Histogram) add(result analysis.Result, weight int, bins [4]int) {
	hi, ci, li, mi := result.TensorIndex()
	hi = clamp(hi, bins[0]-1)
	ci = clamp(ci, bins[1]-1)
	li = clamp(li, bins[2]-1)
	mi = clamp(mi, bins[3]-1)

	h.counts[flat(hi, ci, li, mi)] += weight
}

// At reports the accumulated count at a cell.
func (h *Histogram) At(hi, ci, li, mi int) int { return h.counts[flat(hi, ci, li, mi)] }

// Windows reports the total record count read into this histogram
// (including records excluded by an alternate train/test split) — this is
// the N used to class-normalize rates during fusion.
func (h *Histogram) Windows() int { return h.windows }

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}

	if v > max {
		return max
	}

	return v
}

// LoadHistogram reads packed 8-byte AnalysisResult records from r into a
// new Histogram, with indices clamped against the dimension-reduced axis
// sizes for dims (1-4). When alternate is set, only odd-indexed records
// contribute, each at weight 2 — disjoint from the even-indexed half used
// for held-out evaluation (spec §4.5, §8 scenario 4).
func LoadHistogram(r io.Reader, alternate bool, dims int) (*Histogram, error) {
	h := &Histogram{}
	bins := reducedBins(dims)

	var buf [8]byte

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				break
			}

			return nil, err
		}

		result := analysis.Unmarshal(buf)

		weight := 1
		if alternate {
			weight = 2
		}

		if !alternate || h.windows%2 == 1 {
			h.add(result, weight, bins)
		}

		h.windows++
	}

	return h, nil
}

// Band is a population-trimmed value range: symmetrically shrinking the
// histogram's [low,high] span from whichever end has fewer hits until at
// least Percent of the total population remains (the original's
// display_population, spec.md SUPPLEMENTED FEATURES).
type Band struct {
	Low, High int
	Count     int
	Percent   float64
}

// Summary is the recovered display_histogram/display_population statistics
// over one AnalysisResult byte field's distribution.
type Summary struct {
	Min, Max          int
	Mean              float64
	Median            float64
	ModeLow, ModeHigh int // average of tied modes, as in the original
	Bands             map[int]Band // percent -> band, for 50/75/90/95/98
}

// SummarizeField builds a Summary from a byte-field histogram (e.g. a
// loaded analysis dump's range_dB/cycles/zone/attack/jitter distributions),
// reproducing display_histogram/display_population exactly, including their
// tie-averaged mode and interpolated median.
func SummarizeField(buckets []int) Summary {
	var s Summary

	s.Min, s.Max = -1, -1

	var (
		hits, sum, maxHits int
	)

	for v, n := range buckets {
		if n == 0 {
			continue
		}

		if n > maxHits {
			maxHits = n
			s.ModeLow, s.ModeHigh = v, v
		} else if n == maxHits {
			s.ModeHigh = v
		}

		if s.Min == -1 {
			s.Min = v
		}

		s.Max = v
		hits += n
		sum += v * n
	}

	if hits == 0 {
		return s
	}

	s.Mean = float64(sum) / float64(hits)
	s.Median = interpolatedMedian(buckets, hits)

	s.Bands = make(map[int]Band, 5)
	for _, p := range []int{50, 75, 90, 95, 98} {
		if band, ok := populationBand(buckets, p); ok {
			s.Bands[p] = band
		}
	}

	return s
}

// interpolatedMedian finds the bucket straddling the 50th-percentile hit and
// linearly interpolates within it, exactly as display_histogram does.
func interpolatedMedian(buckets []int, hits int) float64 {
	var seen int

	for v, n := range buckets {
		if n == 0 {
			continue
		}

		if float64(seen+n) > float64(hits)/2.0 {
			return float64(v) - 0.5 + (float64(hits)/2.0-float64(seen))/float64(n)
		}

		seen += n
	}

	return 0
}

// populationBand reproduces display_population's symmetric trim: starting
// from the full [low,high] span, repeatedly shrink from whichever end has
// fewer hits (ties alternate which end shrinks) until the remaining count
// would drop at or below the percent-of-total target.
func populationBand(buckets []int, percent int) (Band, bool) {
	low, high := -1, -1
	sum := 0

	for v, n := range buckets {
		if n == 0 {
			continue
		}

		if low == -1 {
			low = v
		}

		high = v
		sum += n
	}

	if sum == 0 {
		return Band{}, false
	}

	target := roundHalfUp(float64(sum) * float64(percent) / 100.0)
	remaining := sum
	toggle := false

	for remaining > target {
		shrinkLow := buckets[low] < buckets[high] || (buckets[low] == buckets[high] && func() bool {
			toggle = !toggle
			return toggle
		}())

		if shrinkLow {
			if remaining-buckets[low]/2 > target {
				remaining -= buckets[low]
				low++
			} else {
				break
			}
		} else {
			if remaining-buckets[high]/2 > target {
				remaining -= buckets[high]
				high--
			} else {
				break
			}
		}
	}

	return Band{Low: low, High: high, Count: remaining, Percent: float64(remaining) * 100.0 / float64(sum)}, true
}

// Dataset holds the two class histograms fusion reads from, plus the
// effective dimension count (1-4, spec §4.5 "Dimension reduction").
type Dataset struct {
	Music, Talk *Histogram
	Dims        int

	bins [4]int
}

// NewDataset builds a Dataset, clamping dims to [1,4] and deriving the
// effective (possibly collapsed) axis sizes used during fusion/border-fill.
func NewDataset(music, talk *Histogram, dims int) *Dataset {
	if dims < 1 {
		dims = 4
	}

	if dims > 4 {
		dims = 4
	}

	return &Dataset{Music: music, Talk: talk, Dims: dims, bins: reducedBins(dims)}
}

// Fuse implements spec §4.5's fusion + iterative border-fill + dimension
// broadcast, returning the finished tensor.
func (d *Dataset) Fuse() *tensor.Tensor {
	t := tensor.New()

	n1 := d.Music.windows
	n2 := d.Talk.windows

	for h := 0; h < d.bins[0]; h++ {
		for i := 0; i < d.bins[1]; i++ {
			for j := 0; j < d.bins[2]; j++ {
				for k := 0; k < d.bins[3]; k++ {
					h1 := d.Music.At(h, i, j, k)
					h2 := d.Talk.At(h, i, j, k)

					switch {
					case h1 > 0 && h2 == 0:
						t.Set(h, i, j, k, 99)
					case h1 == 0 && h2 > 0:
						t.Set(h, i, j, k, -99)
					case h1 > 0 && h2 > 0:
						w1 := float64(h1) / float64(n1)
						w2 := float64(h2) / float64(n2)

						if w1 > w2 {
							w2 /= w1
							w1 = 1.0
						} else {
							w1 /= w2
							w2 = 1.0
						}

						t.Set(h, i, j, k, roundHalfUp(w1*99-w2*99))
					}
				}
			}
		}
	}

	d.borderFill(t)
	d.broadcast(t)

	return t
}

// roundHalfUp rounds half-up uniformly in both directions (floor(x+0.5), no
// banker's rounding, no away-from-zero special case for negative values),
// matching tensor-gen.c's "(int) floor(... + 0.5)" exactly (spec.md §4.5).
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// borderFill repeatedly extrapolates empty cells from their 3x3x3x3
// neighborhood (81 neighbors including self, clipped at axis bounds) until
// a full pass changes nothing (spec §4.5 "Border-fill").
func (d *Dataset) borderFill(t *tensor.Tensor) {
	for {
		changed := false
		shadow := make(map[int]int8)

		for h := 0; h < d.bins[0]; h++ {
			for i := 0; i < d.bins[1]; i++ {
				for j := 0; j < d.bins[2]; j++ {
					for k := 0; k < d.bins[3]; k++ {
						if t.Get(h, i, j, k) != 0 {
							continue
						}

						if values := d.neighborValues(t, h, i, j, k); len(values) > 0 {
							shadow[flat(h, i, j, k)] = int8(roundHalfUp(stat.Mean(values, nil)))
						}
					}
				}
			}
		}

		if len(shadow) == 0 {
			return
		}

		for idxKey, v := range shadow {
			if v == 0 {
				// A neighborhood mean that rounds to zero leaves the
				// cell empty, so it changes nothing this pass.
				continue
			}

			h, i, j, k := unflat(idxKey)
			t.Set(h, i, j, k, int(v))
			changed = true
		}

		if !changed {
			return
		}
	}
}

func unflat(idx int) (h, i, j, k int) {
	k = idx % dimMid
	idx /= dimMid
	j = idx % dimLow
	idx /= dimLow
	i = idx % dimCycles
	idx /= dimCycles
	h = idx

	return
}

// neighborValues collects the non-zero cells in the 3x3x3x3 neighborhood of
// (h,i,j,k), including self, clipped at the dataset's (possibly
// dimension-reduced) axis bounds.
func (d *Dataset) neighborValues(t *tensor.Tensor, h, i, j, k int) []float64 {
	var values []float64

	for dh := -1; dh <= 1; dh++ {
		nh := h + dh
		if nh < 0 || nh >= d.bins[0] {
			continue
		}

		for di := -1; di <= 1; di++ {
			ni := i + di
			if ni < 0 || ni >= d.bins[1] {
				continue
			}

			for dj := -1; dj <= 1; dj++ {
				nj := j + dj
				if nj < 0 || nj >= d.bins[2] {
					continue
				}

				for dk := -1; dk <= 1; dk++ {
					nk := k + dk
					if nk < 0 || nk >= d.bins[3] {
						continue
					}

					if v := t.Get(nh, ni, nj, nk); v != 0 {
						values = append(values, float64(v))
					}
				}
			}
		}
	}

	return values
}

// broadcast copies each collapsed axis's projection (index 0) across the
// full 48x24x16x16 tensor once border-fill over the reduced shape is done
// (spec §4.5 "Dimension reduction").
func (d *Dataset) broadcast(t *tensor.Tensor) {
	if d.Dims == 4 {
		return
	}

	full := [4]int{dimRange, dimCycles, dimLow, dimMid}

	for h := 0; h < full[0]; h++ {
		sh := h
		if sh >= d.bins[0] {
			sh = 0
		}

		for i := 0; i < full[1]; i++ {
			si := i
			if si >= d.bins[1] {
				si = 0
			}

			for j := 0; j < full[2]; j++ {
				sj := j
				if sj >= d.bins[2] {
					sj = 0
				}

				for k := 0; k < full[3]; k++ {
					sk := k
					if sk >= d.bins[3] {
						sk = 0
					}

					if sh == h && si == i && sj == j && sk == k {
						continue
					}

					t.Set(h, i, j, k, int(t.Get(sh, si, sj, sk)))
				}
			}
		}
	}
}

// Split is the recovered alternate train/test split report (spec §4.5's
// scenario 4, via tensor-gen's "-a" evaluation pass): for each input file,
// count how the finished tensor classifies its held-out (even-indexed)
// records when alternate was used to build the histograms.
type Split struct {
	Windows    int
	MusicHits  int
	TalkHits   int
}

// Evaluate re-reads records from r and counts how the finished tensor
// scores them. When alternate is true only even-indexed records (the half
// withheld from LoadHistogram) are tallied, at weight 1.
func Evaluate(r io.Reader, t *tensor.Tensor, alternate bool) (Split, error) {
	var s Split

	var buf [8]byte

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF {
				break
			}

			return s, err
		}

		result := analysis.Unmarshal(buf)

		if !alternate || s.Windows%2 == 0 {
			hi, ci, li, mi := result.TensorIndex()

			v := t.Get(hi, ci, li, mi)

			switch {
			case v > 0:
				s.MusicHits++
			case v < 0:
				s.TalkHits++
			}
		}

		s.Windows++
	}

	return s, nil
}
