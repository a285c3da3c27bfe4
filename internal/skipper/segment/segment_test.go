package segment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbry/skipper/internal/skipper/segment"
)

const (
	sampleRate  = 44100
	stepSamples = sampleRate * 200 / 1000
	crossfadeN  = 2 * sampleRate
)

// TestMusicConfirmationLatency covers spec.md §8 property 5: a confirmed
// MUSIC transition fires after exactly MIN_MUSIC_S = 20s (100 windows) of
// sustained positive score, once the results ring has filled.
func TestMusicConfirmationLatency(t *testing.T) {
	m := segment.New(sampleRate, stepSamples, crossfadeN, 0)

	var numSamples int64

	var ev *segment.Event

	// Fill the AVG=25-window ring first; no event should fire before then.
	for i := 0; i < segment.AVG-1; i++ {
		numSamples += int64(stepSamples)
		ev = m.Push(99, numSamples)
		require.Nil(t, ev)
	}

	// From here, every positive window both fills the ring (popping the
	// oldest) and increments music_up; confirmation needs
	// MIN_MUSIC_S*1000/STEP_MS = 100 consecutive positive windows.
	const minMusicWindows = 20 * 1000 / 200

	for i := 0; i < minMusicWindows-1; i++ {
		numSamples += int64(stepSamples)
		ev = m.Push(99, numSamples)
		assert.Nil(t, ev)
	}

	numSamples += int64(stepSamples)
	ev = m.Push(99, numSamples)
	require.NotNil(t, ev)
	assert.Equal(t, segment.ModeMusic, ev.Mode)

	// The event must report the sample at which music_up first went 0->1
	// (the ring's very first full window, numSamples == AVG*stepSamples),
	// not the numSamples of this much-later confirming window: latched
	// onset = AVG*stepSamples - (WINDOW_S+AVG_S)*sampleRate/2, which here
	// works out to exactly 0.
	assert.Equal(t, int64(0), ev.TransitionSample)
}

// TestPendingCancel covers spec.md §8 property 6: a dissenting counter
// that has not yet reached its own confirmation threshold is cleared, not
// preserved, once the current mode's tendency resumes for MAX_PEND_S = 60s
// — a later short dissenting run starts from zero rather than resuming
// partway toward confirmation.
func TestPendingCancelClearsPartialDissent(t *testing.T) {
	m := segment.New(sampleRate, stepSamples, crossfadeN, 0)

	var numSamples int64

	const minMusicWindows = 20 * 1000 / 200

	// Confirm MUSIC first.
	for i := 0; i < segment.AVG-1+minMusicWindows; i++ {
		numSamples += int64(stepSamples)
		m.Push(99, numSamples)
	}

	require.Equal(t, segment.ModeMusic, m.Current())

	// Push 35 windows of -99: the 25-window sum turns negative from the
	// 13th on, building talk_up to 23, nowhere near minTalkWindows=50, so
	// no TALK confirmation yet.
	for i := 0; i < 35; i++ {
		numSamples += int64(stepSamples)
		ev := m.Push(-99, numSamples)
		assert.Nil(t, ev)
	}

	// Sustained music tendency for 60s (300 windows, MAX_PEND_S) decrements
	// and then cancels the partial talk_up build-up; mode never flips and
	// no TALK event fires.
	const maxPendWindows = 60 * 1000 / 200

	for i := 0; i < maxPendWindows; i++ {
		numSamples += int64(stepSamples)
		ev := m.Push(99, numSamples)
		assert.Nil(t, ev)
	}

	assert.Equal(t, segment.ModeMusic, m.Current())

	// The same dissent run again builds talk_up to 23 and does not confirm
	// TALK: the earlier partial build-up was cleared, not carried forward
	// (carried forward, it would have reached 50 and confirmed).
	for i := 0; i < 35; i++ {
		numSamples += int64(stepSamples)
		ev := m.Push(-99, numSamples)
		assert.Nil(t, ev)
	}

	assert.Equal(t, segment.ModeMusic, m.Current())
}
