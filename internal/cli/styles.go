// Package cli renders analysis results and help text for the mptmeter
// command line.
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/mptmeter/internal/mpt"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#2E86AB") // mptmeter blue
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#D7263D"))

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)
)

// bandColors maps the classification display color to a terminal color.
var bandColors = map[string]lipgloss.Color{
	"RED":    lipgloss.Color("#D7263D"),
	"ORANGE": lipgloss.Color("#F46036"),
	"YELLOW": lipgloss.Color("#E2C044"),
	"GREEN":  lipgloss.Color("#1B998B"),
	"GRAY":   mutedColor,
}

// UrgencyStyle returns the badge style for a classification.
func UrgencyStyle(c mpt.Classification) lipgloss.Style {
	col, ok := bandColors[c.Color]
	if !ok {
		col = mutedColor
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Background(col).
		Padding(0, 1)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer, version string) {
	fmt.Fprintln(w, TitleStyle.Render("mptmeter"))
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Fprintln(w)
}

// PrintError prints an error message.
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), message)
}
