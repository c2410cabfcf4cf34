package cli

import (
	"fmt"
	"strings"

	"github.com/MrWong99/mptmeter/internal/mpt"
)

// RenderResult formats one analysis for the terminal. name labels the
// recording, usually its file path.
func RenderResult(name string, res mpt.Result) string {
	var sb strings.Builder

	sb.WriteString(TitleStyle.Render(name))
	sb.WriteString("\n")

	c := res.Classification
	sb.WriteString(UrgencyStyle(c).Render(string(res.Urgency)))
	if res.Valid() {
		fmt.Fprintf(&sb, "  %s\n", ValueStyle.Render(fmt.Sprintf("%.2f s", res.DurationSeconds)))
	} else {
		sb.WriteString("\n")
	}
	sb.WriteString(res.Recommendation)
	sb.WriteString("\n\n")

	if c.ESILevel > 0 {
		row(&sb, "ESI level", fmt.Sprintf("%d (%s)", c.ESILevel, c.Category))
		row(&sb, "Action", c.Action)
	}

	d := res.Debug
	row(&sb, "Noise level", fmt.Sprintf("%.4f", d.NoiseLevel))
	row(&sb, "VAD mode", fmt.Sprintf("%d", d.VADMode))
	row(&sb, "Speech frames", fmt.Sprintf("%d/%d (%.2f%%)", d.SpeechFrames, d.FramesEvaluated, d.SpeechFramePercent))
	row(&sb, "Phonation", phonationSpan(d))
	row(&sb, "Termination", string(d.Termination))
	if d.CalibrationInsufficient {
		row(&sb, "Calibration", fmt.Sprintf("insufficient (%d frames)", d.CalibrationFrames))
	}
	if d.VADErrors > 0 {
		row(&sb, "VAD errors", fmt.Sprintf("%d", d.VADErrors))
	}
	if d.Engine != "" {
		row(&sb, "Engine", d.Engine)
	}
	return sb.String()
}

// RenderFailure formats a file that could not be analysed at all.
func RenderFailure(name string, err error) string {
	return TitleStyle.Render(name) + "\n" + ErrorStyle.Render("Error:") + " " + err.Error() + "\n"
}

func row(sb *strings.Builder, key, value string) {
	fmt.Fprintf(sb, "  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-14s", key+":")), value)
}

func phonationSpan(d mpt.Debug) string {
	switch {
	case d.StartSeconds == nil:
		return "none"
	case d.EndSeconds == nil:
		return fmt.Sprintf("%.3f s → (open)", *d.StartSeconds)
	default:
		return fmt.Sprintf("%.3f s → %.3f s", *d.StartSeconds, *d.EndSeconds)
	}
}
