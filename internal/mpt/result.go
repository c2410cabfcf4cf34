package mpt

import (
	"math"
	"strconv"
)

// Debug carries the troubleshooting fields that accompany every result,
// INVALID ones included.
type Debug struct {
	NoiseLevel         float64 `json:"noiseLevel"`
	VADMode            int     `json:"vadMode"`
	SpeechFramePercent float64 `json:"speechFramePercent"`

	CalibrationFrames       int  `json:"calibrationFrames"`
	CalibrationInsufficient bool `json:"calibrationInsufficient"`
	FramesEvaluated         int  `json:"framesEvaluated"`
	SpeechFrames            int  `json:"speechFrames"`
	VADErrors               int  `json:"vadErrors"`

	// StartSeconds and EndSeconds are offsets from the start of the
	// recording; nil when no phonation was found.
	StartSeconds *float64 `json:"startSeconds"`
	EndSeconds   *float64 `json:"endSeconds"`

	Termination Termination `json:"termination"`
	Engine      string      `json:"engine,omitempty"`
}

// Result is the terminal artifact of one analysis. It is a value; nothing
// retains a reference to it after [Assemble] returns.
type Result struct {
	DurationSeconds float64        `json:"durationSeconds"`
	Urgency         Urgency        `json:"urgency"`
	Recommendation  string         `json:"recommendation"`
	Classification  Classification `json:"classification"`
	Debug           Debug          `json:"debug"`
}

// Valid reports whether the result is a clinical measurement.
func (r Result) Valid() bool {
	return r.Urgency != UrgencyInvalid
}

// Err returns ErrNoSpeechDetected or ErrTooShort for INVALID results and nil
// otherwise.
func (r Result) Err() error {
	return r.Classification.Failure
}

// VADModeLabel returns the VAD mode as a metric label.
func (r Result) VADModeLabel() string {
	return strconv.Itoa(r.Debug.VADMode)
}

// Assemble combines the session artifacts into a Result. It is a pure
// function of its arguments.
func Assemble(cal CalibrationResult, ev PhonationEvent, cls Classification, stats FrameStats, engine string) Result {
	dbg := Debug{
		NoiseLevel:              round(cal.NoiseLevel, 4),
		VADMode:                 int(cal.VADMode),
		SpeechFramePercent:      round(stats.SpeechPercent(), 2),
		CalibrationFrames:       cal.Frames,
		CalibrationInsufficient: cal.Insufficient,
		FramesEvaluated:         stats.Evaluated,
		SpeechFrames:            stats.Speech,
		VADErrors:               stats.VADErrors,
		Termination:             ev.Termination,
		Engine:                  engine,
	}
	var dur float64
	if ev.Started() {
		start := round(ev.Start.Seconds(), 3)
		dbg.StartSeconds = &start
		if ev.State == Ended {
			end := round(ev.End.Seconds(), 3)
			dbg.EndSeconds = &end
			dur = round(ev.Duration().Seconds(), 2)
		}
	}
	return Result{
		DurationSeconds: dur,
		Urgency:         cls.Urgency,
		Recommendation:  cls.Recommendation,
		Classification:  cls,
		Debug:           dbg,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
