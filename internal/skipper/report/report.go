// Package report formats skipper's run and tensor-builder output through
// primordium's console/JSON/markdown formatters, the same way haustorium
// formats its analyzer results.
package report

import (
	"io"
	"strconv"

	"github.com/farcloser/primordium/format"

	"github.com/dbry/skipper/internal/skipper/builder"
)

// RunStats is the end-of-stream summary for the streaming splicer (spec §7).
type RunStats struct {
	InputSamples     int64
	SamplesWritten   int64
	SamplesDiscarded int64
	MusicTransitions int
	TalkTransitions  int
	DegenerateSkips  int
}

// RunStatsToMap converts RunStats into the canonical map used for console,
// JSON, and markdown output.
func RunStatsToMap(s RunStats) map[string]any {
	return map[string]any{
		"input_samples":     s.InputSamples,
		"samples_written":   s.SamplesWritten,
		"samples_discarded": s.SamplesDiscarded,
		"music_transitions": s.MusicTransitions,
		"talk_transitions":  s.TalkTransitions,
		"degenerate_skips":  s.DegenerateSkips,
	}
}

// SummaryToMap converts a builder.Summary (spec's recovered
// display_histogram/display_population stats) into the canonical map.
func SummaryToMap(s builder.Summary) map[string]any {
	meta := map[string]any{
		"min":    s.Min,
		"max":    s.Max,
		"mean":   s.Mean,
		"median": s.Median,
		"mode":   (float64(s.ModeLow) + float64(s.ModeHigh)) / 2.0,
	}

	if len(s.Bands) > 0 {
		bands := make(map[string]map[string]any, len(s.Bands))
		for p, b := range s.Bands {
			bands[percentileLabel(p)] = map[string]any{
				"low":     b.Low,
				"high":    b.High,
				"count":   b.Count,
				"percent": b.Percent,
			}
		}

		meta["population"] = bands
	}

	return meta
}

func percentileLabel(p int) string {
	switch p {
	case 50:
		return "p50"
	case 75:
		return "p75"
	case 90:
		return "p90"
	case 95:
		return "p95"
	case 98:
		return "p98"
	default:
		return "p" + strconv.Itoa(p)
	}
}

// SplitToMap converts a builder.Split (the alternate train/held-out
// evaluation pass, spec §4.5 scenario 4) into the canonical map.
func SplitToMap(s builder.Split) map[string]any {
	return map[string]any{
		"windows":    s.Windows,
		"music_hits": s.MusicHits,
		"talk_hits":  s.TalkHits,
	}
}

// Write renders meta under object through the named formatter (console,
// json, markdown) to w.
func Write(w io.Writer, object, formatName string, meta map[string]any) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	data := &format.Data{
		Object: object,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, w)
}
