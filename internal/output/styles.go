package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Use these instead of inline lipgloss.Color literals.
var (
	// ColorCyan is used for identifiable nouns: file paths, plugin names.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for entry-point artifacts.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for partitioned sub-build artifacts.
	ColorYellow = lipgloss.Color("220")

	// ColorBoldRed is used for failures (matches ERROR level).
	ColorBoldRed = lipgloss.Color("204")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns.
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleAction styles action verbs.
	StyleAction = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome (prefixes, separators, sizes).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// Artifact kinds.
const (
	KindEntry     = "entry"
	KindPartition = "partition"
	KindAsset     = "asset"
	KindFailed    = "failed"
)

// KindStyle returns the style for an artifact kind. Unknown kinds are unstyled.
func KindStyle(kind string) lipgloss.Style {
	switch kind {
	case KindEntry:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case KindPartition:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case KindAsset:
		return lipgloss.NewStyle().Faint(true)
	case KindFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minPathColumnWidth keeps kind suffixes aligned.
const minPathColumnWidth = 48

// FormatArtifactLine renders an artifact path with a right-aligned kind and size.
//
// Format: a:<path>  <kind> <size>
func FormatArtifactLine(path, kind string, bytes int) string {
	padding := minPathColumnWidth - len(path)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("a:") +
		StyleNoun.Render(path) +
		strings.Repeat(" ", padding) +
		KindStyle(kind).Render(kind) + " " +
		StyleDim.Render(FormatBytes(bytes))
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}
