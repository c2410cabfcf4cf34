package mpt

import (
	"time"

	"github.com/MrWong99/mptmeter/pkg/audio"
)

// State is the phase of a [PhonationEvent].
type State int

const (
	// Waiting: no speech seen yet.
	Waiting State = iota
	// Speaking: phonation has started and the silence timeout has not fired.
	Speaking
	// Ended: phonation is over; further frames are not consumed.
	Ended
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Speaking:
		return "SPEAKING"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Termination records why a phonation stopped being tracked.
type Termination string

const (
	TerminationNone           Termination = ""
	TerminationSilenceTimeout Termination = "silence_timeout"
	TerminationEndOfStream    Termination = "end_of_stream"
	TerminationNoSpeech       Termination = "no_speech"
)

// FrameDecision is one post-calibration frame and the VAD verdict on it.
type FrameDecision struct {
	Frame     audio.AudioFrame
	IsSpeech  bool
	Timestamp time.Duration
}

// PhonationEvent is the state of the boundary detector. It is a plain value:
// [Step] and [Finish] return updated copies and never mutate their input.
type PhonationEvent struct {
	State State

	// Start is the timestamp of the first speech frame. Valid unless the
	// state is Waiting.
	Start time.Duration

	// End is the timestamp of the last speech frame. Valid once State is
	// Ended.
	End time.Duration

	// LastSpeech is the timestamp of the most recent speech frame.
	LastSpeech time.Duration

	Termination Termination
}

// Started reports whether any speech frame has been seen.
func (ev PhonationEvent) Started() bool {
	return ev.State != Waiting
}

// Done reports whether the event accepts no further frames.
func (ev PhonationEvent) Done() bool {
	return ev.Termination != TerminationNone
}

// Duration returns End - Start for an ended phonation and 0 otherwise.
func (ev PhonationEvent) Duration() time.Duration {
	if ev.State != Ended {
		return 0
	}
	return ev.End - ev.Start
}

// Step advances ev by one decision. Decisions must arrive in timestamp
// order. Once ev is done, Step returns it unchanged.
func Step(ev PhonationEvent, d FrameDecision, silenceTimeout time.Duration) PhonationEvent {
	if ev.Done() {
		return ev
	}
	switch ev.State {
	case Waiting:
		if d.IsSpeech {
			ev.State = Speaking
			ev.Start = d.Timestamp
			ev.LastSpeech = d.Timestamp
		}
	case Speaking:
		if d.IsSpeech {
			ev.LastSpeech = d.Timestamp
			break
		}
		if d.Timestamp-ev.LastSpeech >= silenceTimeout {
			ev.State = Ended
			ev.End = ev.LastSpeech
			ev.Termination = TerminationSilenceTimeout
		}
	}
	return ev
}

// Finish closes ev when the frame stream is exhausted. A phonation still in
// progress ends at its last speech frame; an event that never left Waiting
// is marked [TerminationNoSpeech].
func Finish(ev PhonationEvent) PhonationEvent {
	if ev.Done() {
		return ev
	}
	switch ev.State {
	case Waiting:
		ev.Termination = TerminationNoSpeech
	case Speaking:
		ev.State = Ended
		ev.End = ev.LastSpeech
		ev.Termination = TerminationEndOfStream
	}
	return ev
}

// FrameStats are the frame counts behind the debug percentages.
type FrameStats struct {
	// Evaluated is the number of post-calibration frames consumed, including
	// the one that fired the silence timeout.
	Evaluated int

	// Speech is how many of them the VAD judged to be speech.
	Speech int

	// VADErrors counts frames the detector failed on; they count as
	// non-speech.
	VADErrors int
}

// SpeechPercent returns Speech / Evaluated * 100, or 0 with nothing evaluated.
func (s FrameStats) SpeechPercent() float64 {
	if s.Evaluated == 0 {
		return 0
	}
	return float64(s.Speech) / float64(s.Evaluated) * 100
}

// Detector drives a [PhonationEvent] and keeps the frame statistics. It is the
// single-session stateful wrapper around [Step].
type Detector struct {
	timeout time.Duration
	ev      PhonationEvent
	stats   FrameStats
}

// NewDetector returns a Detector in the Waiting state.
func NewDetector(silenceTimeout time.Duration) *Detector {
	return &Detector{timeout: silenceTimeout}
}

// Observe consumes one decision and reports whether phonation has ended.
// Decisions arriving after that are not counted.
func (d *Detector) Observe(dec FrameDecision) bool {
	if d.ev.Done() {
		return true
	}
	d.stats.Evaluated++
	if dec.IsSpeech {
		d.stats.Speech++
	}
	d.ev = Step(d.ev, dec, d.timeout)
	return d.ev.Done()
}

// Finish closes the event at end of stream and returns it.
func (d *Detector) Finish() PhonationEvent {
	d.ev = Finish(d.ev)
	return d.ev
}

// Event returns the current event.
func (d *Detector) Event() PhonationEvent { return d.ev }

// Stats returns the frame statistics so far.
func (d *Detector) Stats() FrameStats { return d.stats }

func (d *Detector) countVADError() { d.stats.VADErrors++ }
