// Package theme holds the colors, styles and glyphs of the watch screen.
// Colors adapt to light and dark terminals; lipgloss honors NO_COLOR.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"buildwatch/internal/domain"
)

var (
	green  = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	red    = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	amber  = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	blue   = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	purple = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	grey   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	panel  = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	faint  = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
)

// Fill colors for bubbles/progress, which takes plain hex strings.
const (
	BarInfo    = "#4fc3f7"
	BarSuccess = "#66bb6a"
	BarFailure = "#ef5350"
	BarEmpty   = "#616161"
)

var (
	Dim = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(green).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(red).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(amber).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(blue)
	TextMuted   = lipgloss.NewStyle().Foreground(grey)

	Title     = lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	StatusBar = lipgloss.NewStyle().Foreground(faint).Background(panel).Padding(0, 1)
	StatusKey = lipgloss.NewStyle().Foreground(blue).Bold(true)
)

// ConnectionStyle returns the text style for a log channel state.
func ConnectionStyle(s domain.ConnectionState) lipgloss.Style {
	switch s {
	case domain.ConnOpen:
		return TextSuccess
	case domain.ConnConnecting:
		return TextInfo
	case domain.ConnClosedError:
		return TextError
	case domain.ConnSuperseded:
		return TextWarning
	default:
		return TextMuted
	}
}

// BarColor returns the progress fill color for a status.
func BarColor(s domain.ProgressStatus) string {
	switch s {
	case domain.ProgressSuccess:
		return BarSuccess
	case domain.ProgressFailure:
		return BarFailure
	default:
		return BarInfo
	}
}

func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
