// Package segment implements the segmentation state machine (C5): it smooths
// tensor lookups over a running sum of the last AVG windows and turns
// sustained music/talk tendency into confirmed transition events, with
// hysteresis against brief pending reversals.
package segment

const (
	// AVG is the results ring length: 5 s of history at 200 ms/window.
	AVG = 25

	stepMS         = 200
	windowSeconds  = 5
	averageSeconds = 5

	minMusicWindows = 20 * 1000 / stepMS
	minTalkWindows  = 10 * 1000 / stepMS
	maxPendWindows  = 60 * 1000 / stepMS
)

// Mode is the confirmed (or current) classification of the stream.
type Mode int

const (
	ModeNone Mode = iota
	ModeMusic
	ModeTalk
)

// Event reports a newly confirmed transition: the mode the stream has just
// entered and the sample index at which it is judged to have started.
type Event struct {
	Mode             Mode
	TransitionSample int64
}

// Machine holds the running results ring and hysteresis counters across the
// lifetime of a stream.
type Machine struct {
	sampleRate  int
	stepSamples int
	crossfadeN  int
	threshold   int

	ring []int8

	current Mode

	musicUp, talkUp, pendUp int

	// musicLatched/talkLatched are the transition_sample values latched
	// at the window where the respective tendency counter first went
	// 0->1 (spec §4.3): the event built once that counter later confirms
	// reuses this latched onset rather than the confirming window's own
	// numSamples.
	musicLatched, talkLatched int64

	confirmedSample int64
	confirmedValid  bool
}

// New builds a Machine. threshold is the user's music/talk bias offset
// (spec §4.3, range [-99,99]); stepSamples and crossfadeSamples are the
// window stride and crossfade length in samples at the configured rate.
func New(sampleRate, stepSamples, crossfadeSamples, threshold int) *Machine {
	return &Machine{
		sampleRate:  sampleRate,
		stepSamples: stepSamples,
		crossfadeN:  crossfadeSamples,
		threshold:   threshold,
		ring:        make([]int8, 0, AVG),
	}
}

// transitionBase locates the start of a transition by subtracting from
// numSamples half of the combined analysis-window + averaging-ring latency.
// The confirmed high-water mark in Push uses its own, larger offset.
func (m *Machine) transitionBase(numSamples int64) int64 {
	return numSamples - int64((windowSeconds+averageSeconds)*m.sampleRate)/2
}

// Push feeds one new per-window tensor lookup into the results ring. It
// returns a non-nil Event only on the window that confirms a transition.
// numSamples is the running input-sample count as of this window boundary.
//
// The ring's push-then-pop-after-sum quirk is intentional (spec §4.3 note):
// the sum is computed over all AVG values on the window that fills the
// ring, but the oldest value is then popped before that sum is compared
// against threshold*n, so n is one less than the number of values summed.
// Before the ring first fills, no sum exists yet and this is a no-op.
func (m *Machine) Push(v int8, numSamples int64) *Event {
	m.ring = append(m.ring, v)

	if len(m.ring) != AVG {
		return nil
	}

	var sum int
	for _, x := range m.ring {
		sum += int(x)
	}

	m.ring = append(m.ring[:0], m.ring[1:]...)
	n := len(m.ring)

	var detected Mode

	if sum > m.threshold*n {
		if m.current == ModeMusic {
			if m.talkUp > 0 {
				m.talkUp--

				if m.talkUp > 0 {
					m.pendUp++

					if m.pendUp >= maxPendWindows {
						m.talkUp = 0
					}
				}
			}
		} else {
			if m.musicUp == 0 {
				m.pendUp = 0
				m.musicLatched = m.transitionBase(numSamples)
			}

			m.musicUp++

			if m.musicUp == minMusicWindows {
				detected = ModeMusic
				m.musicUp = 0
			}

			m.pendUp++
		}
	} else {
		if m.current == ModeTalk {
			if m.musicUp > 0 {
				m.musicUp--

				if m.musicUp > 0 {
					m.pendUp++

					if m.pendUp >= maxPendWindows {
						m.musicUp = 0
					}
				}
			}
		} else {
			if m.talkUp == 0 {
				m.pendUp = 0
				m.talkLatched = m.transitionBase(numSamples)
			}

			m.talkUp++

			if m.talkUp == minTalkWindows {
				detected = ModeTalk
				m.talkUp = 0
			}

			m.pendUp++
		}
	}

	var event *Event

	if detected == ModeMusic {
		event = &Event{Mode: detected, TransitionSample: m.musicLatched}
		m.current = detected
	} else if detected == ModeTalk {
		event = &Event{Mode: detected, TransitionSample: m.talkLatched}
		m.current = detected
	}

	if m.talkUp == 0 && m.musicUp == 0 {
		m.confirmedSample = numSamples - int64((windowSeconds+averageSeconds)*m.sampleRate+m.stepSamples+m.crossfadeN)/2
		m.confirmedValid = true
	}

	return event
}

// Confirmed reports the high-water mark of audio that cannot be
// retroactively edited (spec §4.3's confirmed_sample), and whether any
// window has yet set it.
func (m *Machine) Confirmed() (sample int64, ok bool) {
	return m.confirmedSample, m.confirmedValid
}

// Current reports the machine's last confirmed mode.
func (m *Machine) Current() Mode { return m.current }
