// Package skipper implements the streaming audio classifier/editor (spec
// §1-§5): it downmixes and band-limits incoming PCM, extracts a rolling
// level envelope, classifies 200ms windows against a 4-D tensor, and edits
// the output stream around confirmed music/talk transitions.
package skipper

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/dbry/skipper/internal/skipper/analysis"
	"github.com/dbry/skipper/internal/skipper/assets"
	"github.com/dbry/skipper/internal/skipper/envelope"
	"github.com/dbry/skipper/internal/skipper/fault"
	"github.com/dbry/skipper/internal/skipper/segment"
	"github.com/dbry/skipper/internal/skipper/splice"
)

const (
	stepMS        = 200
	windowSeconds = 5
)

// Result summarizes one completed run (spec §7(iv)'s end-of-stream drain).
type Result struct {
	InputSamples     int64
	SamplesWritten   int64
	SamplesDiscarded int64
	MusicTransitions int
	TalkTransitions  int
}

// Run consumes interleaved 16-bit little-endian PCM from r and writes the
// edited stereo output to w, following opts. EOF on r is the only
// termination signal (spec §5); any other read error, and any runtime
// invariant violation (buffer overrun, out-of-range transition, degenerate
// analysis window), aborts the run and returns a non-nil error.
func Run(r io.Reader, w io.Writer, opts Options) (*Result, error) {
	if opts.Channels != 1 && opts.Channels != 2 {
		return nil, fmt.Errorf("%w: channels must be 1 or 2, got %d", fault.ErrArgument, opts.Channels)
	}

	if opts.SampleRate < 11025 || opts.SampleRate > 96000 {
		return nil, fmt.Errorf("%w: sample rate %d out of range [11025,96000]", fault.ErrArgument, opts.SampleRate)
	}

	discriminator := opts.Tensor
	if discriminator == nil {
		var err error

		discriminator, err = assets.Fallback()
		if err != nil {
			return nil, err
		}
	}

	stepSamples := opts.SampleRate * stepMS / 1000
	levelLen := opts.SampleRate * windowSeconds
	crossfadeSamples := 2 * opts.SampleRate

	env := envelope.New(opts.SampleRate)
	machine := segment.New(opts.SampleRate, stepSamples, crossfadeSamples, opts.Threshold)
	ring := splice.New(w, opts.SampleRate, opts.SkipMode, opts.KeepAlive)

	levels := make([]float64, 0, levelLen)

	var (
		numSamples       int64
		sinceWindow      int
		lastScore        int8
		lastLevel        float64
		musicTransitions int
		talkTransitions  int
	)

	frameBytes := 2 * opts.Channels
	buf := make([]byte, frameBytes)
	frame := make([]int16, opts.Channels)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
		}

		for ch := 0; ch < opts.Channels; ch++ {
			frame[ch] = int16(binary.LittleEndian.Uint16(buf[ch*2:]))
		}

		filtered, level := env.Process(frame)
		lastLevel = level

		levels = append(levels, level)
		if len(levels) > levelLen {
			levels = levels[len(levels)-levelLen:]
		}

		numSamples++
		sinceWindow++

		if sinceWindow >= stepSamples && len(levels) == levelLen {
			sinceWindow = 0

			result, err := analysis.Analyze(levels)
			if err != nil {
				return nil, err
			}

			if opts.AnalysisDump != nil {
				rec := result.Marshal()
				if _, err := opts.AnalysisDump.Write(rec[:]); err != nil {
					return nil, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
				}
			}

			h, i, j, k := result.TensorIndex()
			lastScore = discriminator.Get(h, i, j, k)

			if opts.Verbose {
				logWindow(opts, numSamples, result)
			}

			if ev := machine.Push(lastScore, numSamples); ev != nil {
				if ev.Mode == segment.ModeMusic {
					musicTransitions++
				} else {
					talkTransitions++
				}

				if err := ring.HandleTransition(ev, numSamples); err != nil {
					return nil, err
				}
			}
		}

		outFrame := splice.Frame{frame[0], frame[0]}
		if opts.Channels == 2 {
			outFrame[1] = frame[1]
		}

		applyDebug(&outFrame, opts, filtered, lastLevel, lastScore)

		confirmedSample, _ := machine.Confirmed()

		if err := ring.Push(outFrame, confirmedSample, numSamples, stepSamples); err != nil {
			return nil, err
		}
	}

	if err := ring.Final(); err != nil {
		return nil, err
	}

	return &Result{
		InputSamples:     numSamples,
		SamplesWritten:   ring.Written(),
		SamplesDiscarded: ring.Discarded(),
		MusicTransitions: musicTransitions,
		TalkTransitions:  talkTransitions,
	}, nil
}

func applyDebug(frame *splice.Frame, opts Options, filtered, level float64, score int8) {
	if opts.DebugLeft != DebugAudio {
		frame[0] = debugSample(opts.DebugLeft, filtered, level, score)
	}

	if opts.DebugRight != DebugAudio {
		frame[1] = debugSample(opts.DebugRight, filtered, level, score)
	}
}

func debugSample(source DebugSource, filtered, level float64, score int8) int16 {
	switch source {
	case DebugFiltered:
		return clampDebug(filtered)
	case DebugLevelDB:
		return clampDebug(levelToDb(level) * 300)
	case DebugTensorScore:
		return int16(score) * 300
	case DebugMono, DebugAudio:
		return clampDebug(filtered)
	default:
		return clampDebug(filtered)
	}
}

func levelToDb(level float64) float64 {
	if level <= 0 {
		return -96
	}

	return 10 * math.Log10(level)
}

func clampDebug(v float64) int16 {
	if v > 32767 {
		return 32767
	}

	if v < -32768 {
		return -32768
	}

	return int16(v)
}

func logWindow(opts Options, numSamples int64, result analysis.Result) {
	period := opts.VerbosePeriodSec
	if period <= 0 {
		period = 10
	}

	windowLen := int64(opts.SampleRate * windowSeconds)
	if (numSamples-windowLen)%int64(opts.SampleRate*period) != 0 {
		return
	}

	endSec := int(numSamples / int64(opts.SampleRate))
	startSec := endSec - period

	slog.Info(result.Diagnostic(startSec/60, startSec%60, endSec/60, endSec%60))
}
