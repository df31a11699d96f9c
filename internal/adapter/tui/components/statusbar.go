package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"buildwatch/internal/adapter/tui/theme"
	"buildwatch/internal/domain"
)

// KeyHint is one "key: action" pair on the left of the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// StatusBarModel is the bottom line of the watch screen. Hints sit on the
// left; the task id and the log channel state sit on the right.
type StatusBarModel struct {
	Hints  []KeyHint
	TaskID string
	State  domain.ConnectionState
	Extra  string
	width  int
}

func NewStatusBar() StatusBarModel { return StatusBarModel{} }

func (m *StatusBarModel) SetWidth(w int) { m.width = w }

func (m StatusBarModel) View() string {
	hints := make([]string, 0, len(m.Hints))
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	right := theme.ConnectionStyle(m.State).Render(m.State.String())
	if m.TaskID != "" {
		right = theme.TextMuted.Render(m.TaskID) + " " + theme.SymbolBullet + " " + right
	}
	if m.Extra != "" {
		right = theme.TextInfo.Render(m.Extra) + " " + theme.SymbolBullet + " " + right
	}

	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
