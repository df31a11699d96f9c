package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"buildwatch/internal/adapter/tui/theme"
)

// MaxLogLines bounds the lines kept for display.
const MaxLogLines = 5000

type logLine struct {
	text   string
	notice bool
}

// LogViewModel shows a task's log lines in a scrollable viewport. It sticks
// to the bottom while the user has not scrolled up.
type LogViewModel struct {
	Viewport viewport.Model
	lines    []logLine
	ready    bool
	atBottom bool
}

// NewLogView creates an empty log view.
func NewLogView() LogViewModel {
	return LogViewModel{atBottom: true}
}

// SetSize sets the viewport dimensions.
func (m *LogViewModel) SetSize(w, h int) {
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refresh()
}

// Append adds one line. Notices are locally generated lifecycle lines.
func (m *LogViewModel) Append(text string, notice bool) {
	m.lines = append(m.lines, logLine{text: text, notice: notice})
	if len(m.lines) > MaxLogLines {
		m.lines = m.lines[len(m.lines)-MaxLogLines:]
	}
	m.refresh()
}

// Reset clears the view for a new session.
func (m *LogViewModel) Reset() {
	m.lines = nil
	m.atBottom = true
	m.refresh()
}

// Len returns the number of lines held.
func (m LogViewModel) Len() int { return len(m.lines) }

// Lines returns the raw text of every held line.
func (m LogViewModel) Lines() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = l.text
	}
	return out
}

// AtBottom reports whether the view follows new output.
func (m LogViewModel) AtBottom() bool { return m.atBottom }

// Update handles scrolling.
func (m LogViewModel) Update(msg tea.Msg) (LogViewModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the viewport.
func (m LogViewModel) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m *LogViewModel) refresh() {
	if !m.ready {
		return
	}
	if len(m.lines) == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  Waiting for log output" + theme.SymbolEllipsis))
		return
	}

	var sb strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if l.notice {
			sb.WriteString(theme.TextMuted.Render(l.text))
		} else {
			sb.WriteString(l.text)
		}
	}
	m.Viewport.SetContent(sb.String())
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}
