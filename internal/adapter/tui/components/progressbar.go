package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"buildwatch/internal/adapter/tui/theme"
	"buildwatch/internal/domain"
)

// ProgressBarModel renders a simulated progress state. It draws nothing
// while the state is hidden.
type ProgressBarModel struct {
	bar   progress.Model
	state domain.ProgressState
}

// NewProgressBar creates a hidden progress bar.
func NewProgressBar() ProgressBarModel {
	bar := progress.New(
		progress.WithSolidFill(theme.BarInfo),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = theme.BarEmpty
	return ProgressBarModel{bar: bar, state: domain.ProgressState{Status: domain.ProgressNone}}
}

// SetWidth sets the bar width, leaving room for the percentage label.
func (m *ProgressBarModel) SetWidth(w int) {
	m.bar.Width = theme.Clamp(w-10, 10, 120)
}

// SetState replaces the displayed state.
func (m *ProgressBarModel) SetState(s domain.ProgressState) {
	m.state = s
	m.bar.FullColor = theme.BarColor(s.Status)
}

// State returns the displayed state.
func (m ProgressBarModel) State() domain.ProgressState { return m.state }

// Label renders the percentage with one decimal and the terminal status.
func Label(s domain.ProgressState) string {
	pct := fmt.Sprintf("%5.1f%%", s.Percentage)
	switch s.Status {
	case domain.ProgressSuccess:
		return theme.TextSuccess.Render(pct + " " + theme.SymbolSuccess)
	case domain.ProgressFailure:
		return theme.TextError.Render(pct + " " + theme.SymbolError)
	default:
		return theme.TextInfo.Render(pct)
	}
}

// View renders the bar and its label, or "" when hidden.
func (m ProgressBarModel) View() string {
	if !m.state.Visible {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, m.bar.ViewAs(m.state.Fraction()), " ", Label(m.state))
}
