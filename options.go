package skipper

import (
	"github.com/dbry/skipper/internal/skipper/splice"
	"github.com/dbry/skipper/internal/skipper/tensor"
)

// DebugSource selects what a -l/-r debug channel carries instead of the
// normal audio sample (spec §6).
type DebugSource int

const (
	DebugAudio       DebugSource = iota // normal channel audio (default)
	DebugMono                           // same band-passed signal as DebugFiltered; the plain downmix is not output
	DebugFiltered                       // band-passed envelope signal
	DebugLevelDB                        // current window level, in dB
	DebugTensorScore                    // most recent tensor lookup, scaled to int16
)

// Options configures one streaming run.
type Options struct {
	SampleRate int // Hz, 11025-96000 (spec §6)
	Channels   int // 1 or 2

	SkipMode  splice.SkipMode
	KeepAlive bool
	Threshold int // music/talk bias offset, [-99,99] (spec §4.3)

	// Tensor is the classification table to use. Nil selects the embedded
	// fallback (internal/skipper/assets.Fallback).
	Tensor *tensor.Tensor

	DebugLeft, DebugRight DebugSource

	// AnalysisDump, when non-nil, receives every window's raw 8-byte
	// AnalysisResult record (the "-a" flag, spec §6).
	AnalysisDump AnalysisDumpWriter

	Verbose          bool
	VerbosePeriodSec int
	Quiet            bool
}

// AnalysisDumpWriter accepts packed AnalysisResult bytes as they are
// produced, independent of the stdout PCM stream.
type AnalysisDumpWriter interface {
	Write(p []byte) (int, error)
}

// DefaultOptions returns the spec's documented defaults: stereo, 44100 Hz,
// pass-through (no skipping), no keep-alive, zero threshold bias.
func DefaultOptions() Options {
	return Options{
		SampleRate: 44100,
		Channels:   2,
		SkipMode:   splice.SkipNothing,
	}
}
