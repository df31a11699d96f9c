package watch

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// actionCmd runs fn off the UI loop.
func actionCmd(ctx context.Context, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{err: fn(ctx)}
	}
}
