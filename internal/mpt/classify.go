package mpt

import "time"

// Urgency is the clinical band of a measured phonation time.
type Urgency string

const (
	UrgencyImmediate  Urgency = "IMMEDIATE"
	UrgencyUrgent     Urgency = "URGENT"
	UrgencyConcerning Urgency = "CONCERNING"
	UrgencyNormal     Urgency = "NORMAL"
	UrgencyInvalid    Urgency = "INVALID"
)

// Classification is the verdict for one analysis.
type Classification struct {
	Urgency        Urgency `json:"urgency"`
	Recommendation string  `json:"recommendation"`

	// ESILevel is the Emergency Severity Index, 1 (most acute) to 5. INVALID
	// results carry 0.
	ESILevel int    `json:"esiLevel"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Color    string `json:"color"`

	// Failure is ErrNoSpeechDetected or ErrTooShort for INVALID results.
	Failure error `json:"-"`
}

var (
	classImmediate = Classification{
		Urgency:        UrgencyImmediate,
		Recommendation: "Severe respiratory compromise. Seek immediate medical intervention.",
		ESILevel:       1,
		Category:       "Severe respiratory compromise",
		Action:         "Immediate medical intervention required",
		Color:          "RED",
	}
	classUrgent = Classification{
		Urgency:        UrgencyUrgent,
		Recommendation: "Significant respiratory impairment. Arrange urgent medical evaluation.",
		ESILevel:       2,
		Category:       "Significant respiratory impairment",
		Action:         "Urgent medical evaluation needed",
		Color:          "ORANGE",
	}
	classConcerning = Classification{
		Urgency:        UrgencyConcerning,
		Recommendation: "Below normal respiratory reserve. Medical evaluation is recommended.",
		ESILevel:       2,
		Category:       "Below normal respiratory reserve",
		Action:         "Medical evaluation recommended",
		Color:          "YELLOW",
	}
	classNormal = Classification{
		Urgency:        UrgencyNormal,
		Recommendation: "Normal respiratory reserve. No immediate concerns.",
		ESILevel:       4,
		Category:       "Normal respiratory reserve",
		Action:         "No immediate concerns",
		Color:          "GREEN",
	}
	classTooShort = Classification{
		Urgency:        UrgencyInvalid,
		Recommendation: "Speech too short to measure reliably. Ask the patient to take a deep breath and sustain \"ahh\" as long as possible.",
		Category:       "Measurement failed",
		Action:         "Repeat the recording",
		Color:          "GRAY",
		Failure:        ErrTooShort,
	}
	classNoSpeech = Classification{
		Urgency:        UrgencyInvalid,
		Recommendation: "No speech detected. Ask the patient to speak louder or check the microphone.",
		Category:       "Measurement failed",
		Action:         "Check the microphone and repeat the recording",
		Color:          "GRAY",
		Failure:        ErrNoSpeechDetected,
	}
)

// Classify maps a phonation duration to its clinical band. Every band is
// half-open, [lower, upper), and together they cover [0, ∞).
func Classify(d time.Duration, p Params) Classification {
	u := p.Urgency
	switch {
	case d < p.MinValidDuration:
		return classTooShort
	case d < u.ImmediateBelow:
		return classImmediate
	case d < u.UrgentBelow:
		return classUrgent
	case d < u.ConcerningBelow:
		return classConcerning
	default:
		return classNormal
	}
}

// Judge classifies a finished event. An event that never started yields the
// no-speech verdict instead of a zero-length measurement.
func Judge(ev PhonationEvent, p Params) Classification {
	if !ev.Started() {
		return classNoSpeech
	}
	return Classify(ev.Duration(), p)
}
