// Package splice implements the splicer/crossfader (C6): a large output
// ring that is flushed to the destination stream either verbatim or with a
// skip, crossfading around confirmed music/talk transitions and, optionally,
// inserting periodic keep-alive crossfades during long skips.
package splice

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dbry/skipper/internal/skipper/fault"
	"github.com/dbry/skipper/internal/skipper/segment"
)

// SkipMode selects which class of audio is omitted from the output stream.
type SkipMode int

const (
	SkipNothing SkipMode = iota
	SkipTalk
	SkipMusic
	SkipEverything
)

// Frame is one stereo 16-bit output frame.
type Frame [2]int16

// Ring is the output ring and its crossfade state, sized per spec §3:
// L_out = 120*sample_rate frames, L_xf = 2*sample_rate frames.
type Ring struct {
	out io.Writer

	sampleRate int
	crossfadeN int
	outLen     int

	skipMode  SkipMode
	keepAlive bool

	frames      []Frame
	currentMode segment.Mode

	tail      []Frame
	haveTail  bool

	samplesWritten   int64
	samplesDiscarded int64
}

// New builds a Ring writing flushed frames to out.
func New(out io.Writer, sampleRate int, skipMode SkipMode, keepAlive bool) *Ring {
	return &Ring{
		out:        out,
		sampleRate: sampleRate,
		crossfadeN: 2 * sampleRate,
		outLen:     120 * sampleRate,
		skipMode:   skipMode,
		keepAlive:  keepAlive,
		frames:     make([]Frame, 0, 120*sampleRate),
	}
}

// Written reports the count of frames flushed to out.
func (r *Ring) Written() int64 { return r.samplesWritten }

// Discarded reports the count of frames dropped rather than flushed.
func (r *Ring) Discarded() int64 { return r.samplesDiscarded }

// Len reports the number of frames currently buffered in the ring.
func (r *Ring) Len() int { return len(r.frames) }

func clampSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}

	if v < -32768 {
		return -32768
	}

	return int16(v)
}

// fadeOut scales frame i of n by (n-1-i)/n, a linear ramp to silence.
func fadeOut(frames []Frame) {
	n := int64(len(frames))

	for i := range frames {
		mult := n - 1 - int64(i)
		frames[i][0] = int16(int64(frames[i][0]) * mult / n)
		frames[i][1] = int16(int64(frames[i][1]) * mult / n)
	}
}

// fadeIn scales frame i of n by (i+1)/n, a linear ramp from silence.
func fadeIn(frames []Frame) {
	n := int64(len(frames))

	for i := range frames {
		mult := int64(i) + 1
		frames[i][0] = int16(int64(frames[i][0]) * mult / n)
		frames[i][1] = int16(int64(frames[i][1]) * mult / n)
	}
}

func (r *Ring) writeFrames(frames []Frame) error {
	buf := make([]byte, 4*len(frames))

	for i, f := range frames {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(f[0]))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(f[1]))
	}

	_, err := r.out.Write(buf)

	return err
}

// shouldWrite reports whether frames classified under the ring's current
// mode belong in the output stream (spec §4.4's write_data test).
func (r *Ring) shouldWrite() bool {
	if r.skipMode == SkipNothing {
		return true
	}

	if r.currentMode == segment.ModeMusic {
		return r.skipMode == SkipTalk
	}

	return r.skipMode == SkipMusic
}

func (r *Ring) skippingCurrent() bool {
	if r.currentMode == segment.ModeMusic {
		return r.skipMode == SkipMusic
	}

	return r.skipMode == SkipTalk
}

func (r *Ring) slideLeft(n int) {
	r.frames = append(r.frames[:0], r.frames[n:]...)
}

// Push appends one produced output frame to the ring and runs the flush
// policy: at ring-full, or once at least 60 s of confirmed audio has
// accumulated, flush (spec §4.4 "Flush policy"). confirmedSample and
// numSamples are the segmentation machine's confirmed high-water mark and
// the running input-sample count, both as of after this frame.
func (r *Ring) Push(frame Frame, confirmedSample, numSamples int64, stepSamples int) error {
	r.frames = append(r.frames, frame)

	available := confirmedSample - numSamples + int64(len(r.frames)) + int64(stepSamples)/2

	if len(r.frames) != r.outLen && available < int64(r.sampleRate*60) {
		return nil
	}

	if r.keepAlive && available > int64(2*r.crossfadeN) && r.skippingCurrent() {
		return r.keepAliveFlush(available)
	}

	if available > 0 {
		return r.normalFlush(available)
	}

	return fault.ErrBufferOverrun
}

func (r *Ring) normalFlush(available int64) error {
	n := int(available)

	if r.shouldWrite() {
		if err := r.writeFrames(r.frames[:n]); err != nil {
			return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
		}

		r.samplesWritten += available
	} else {
		r.samplesDiscarded += available
	}

	r.slideLeft(n)

	return nil
}

// keepAliveFlush inserts a synthetic crossfade partway through a long skip
// so downstream players that time out on prolonged silence keep receiving
// data (spec §4.4 "Keep-alive").
func (r *Ring) keepAliveFlush(available int64) error {
	start := int(available/2) - r.crossfadeN
	window := r.frames[start : start+2*r.crossfadeN]

	for i := range window {
		window[i][0] /= 4
		window[i][1] /= 4
	}

	fadeIn(window)

	if r.haveTail {
		for i := range window {
			window[i][0] = clampSample(int32(window[i][0]) + int32(r.tail[i][0]))
			window[i][1] = clampSample(int32(window[i][1]) + int32(r.tail[i][1]))
		}
	}

	if err := r.writeFrames(window[:r.crossfadeN]); err != nil {
		return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	r.samplesWritten += int64(r.crossfadeN)
	r.samplesDiscarded += available - int64(r.crossfadeN)

	newTail := make([]Frame, r.crossfadeN)
	copy(newTail, window[r.crossfadeN:2*r.crossfadeN])
	fadeOut(newTail)
	r.tail = newTail
	r.haveTail = true

	r.slideLeft(int(available))

	return nil
}

// HandleTransition processes a confirmed transition event from the
// segmentation machine (spec §4.4 "Confirmed transition"). numSamples is
// the running input-sample count as of the frame that produced the event.
func (r *Ring) HandleTransition(ev *segment.Event, numSamples int64) error {
	if r.skipMode != SkipMusic && r.skipMode != SkipTalk {
		r.currentMode = ev.Mode

		return nil
	}

	audioOffset := ev.TransitionSample - numSamples + int64(len(r.frames))
	xfStart := audioOffset - int64(r.crossfadeN)/2

	if xfStart < 0 {
		return fault.ErrTransitionOutOfRange
	}

	entering := (ev.Mode == segment.ModeMusic && r.skipMode == SkipMusic) ||
		(ev.Mode == segment.ModeTalk && r.skipMode == SkipTalk)

	n := int(xfStart)

	if entering {
		if err := r.writeFrames(r.frames[:n]); err != nil {
			return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
		}

		r.samplesWritten += xfStart
		r.slideLeft(n)

		tail := make([]Frame, r.crossfadeN)
		copy(tail, r.frames[:r.crossfadeN])
		fadeOut(tail)
		r.tail = tail
		r.haveTail = true
	} else {
		r.samplesDiscarded += xfStart
		r.slideLeft(n)

		fadeIn(r.frames[:r.crossfadeN])

		if r.haveTail {
			for i := 0; i < r.crossfadeN; i++ {
				r.frames[i][0] = clampSample(int32(r.frames[i][0]) + int32(r.tail[i][0]))
				r.frames[i][1] = clampSample(int32(r.frames[i][1]) + int32(r.tail[i][1]))
			}
		}
	}

	r.currentMode = ev.Mode

	return nil
}

// Final flushes whatever remains in the ring at end of stream, without any
// further crossfade (spec §7(iv): short final blocks are emitted as-is).
func (r *Ring) Final() error {
	if len(r.frames) == 0 {
		return nil
	}

	if r.shouldWrite() {
		if err := r.writeFrames(r.frames); err != nil {
			return fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
		}

		r.samplesWritten += int64(len(r.frames))
	} else {
		r.samplesDiscarded += int64(len(r.frames))
	}

	r.frames = r.frames[:0]

	return nil
}
