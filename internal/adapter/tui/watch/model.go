package watch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"buildwatch/internal/adapter/tui/components"
	"buildwatch/internal/adapter/tui/theme"
	"buildwatch/internal/adapter/tui/uxerror"
	"buildwatch/internal/domain"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Controller is the part of the monitor the view drives.
type Controller interface {
	Restart(ctx context.Context) error
	Dismiss()
	Stop()
}

// Deps are dependencies for the watch view.
type Deps struct {
	Ctx        context.Context
	Bus        domain.EventBus
	Controller Controller
	Title      string
	// Start is run once after the view subscribed to the bus, so no event
	// of the first launch is missed.
	Start func(ctx context.Context) error
}

// Model is the root Bubble Tea model of the watcher.
type Model struct {
	deps Deps

	spinner   spinner.Model
	bar       components.ProgressBarModel
	logs      components.LogViewModel
	statusBar components.StatusBarModel

	session string
	result  string
	err     string
	busy    bool

	width  int
	height int

	programSend func(tea.Msg)
	unsubscribe func()
}

// New creates the watch model.
func New(deps Deps) *Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = theme.TextInfo

	sb := components.NewStatusBar()
	sb.State = domain.ConnIdle
	sb.Hints = []components.KeyHint{
		{Key: "r", Desc: "Restart"},
		{Key: "x", Desc: "Dismiss"},
		{Key: "↑/↓", Desc: "Scroll"},
		{Key: "q", Desc: "Quit"},
	}

	return &Model{
		deps:      deps,
		spinner:   s,
		bar:       components.NewProgressBar(),
		logs:      components.NewLogView(),
		statusBar: sb,
	}
}

// SetProgramSender sets the function used to inject messages from the
// EventBus. Must be called before Run().
func (m *Model) SetProgramSender(send func(tea.Msg)) {
	m.programSend = send
}

// Init subscribes to the EventBus and kicks off the first action.
func (m *Model) Init() tea.Cmd {
	if m.deps.Bus != nil && m.programSend != nil {
		m.unsubscribe = m.deps.Bus.SubscribeAll(func(_ context.Context, event domain.Event) {
			m.programSend(EventBusMsg{Event: event})
		})
	}
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.deps.Start != nil {
		m.busy = true
		cmds = append(cmds, actionCmd(m.deps.Ctx, m.deps.Start))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quit()
			return m, tea.Quit
		case "r":
			if m.busy || m.deps.Controller == nil {
				return m, nil
			}
			m.busy = true
			m.err = ""
			m.result = ""
			m.statusBar.Extra = "Restarting" + theme.SymbolEllipsis
			m.layout()
			return m, actionCmd(m.deps.Ctx, m.deps.Controller.Restart)
		case "x":
			if m.deps.Controller != nil {
				m.deps.Controller.Dismiss()
			}
			return m, nil
		}

	case EventBusMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case actionResultMsg:
		m.busy = false
		m.statusBar.Extra = ""
		if msg.err != nil {
			m.err = uxerror.Humanize(msg.err).Render()
			m.layout()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

// View renders the watcher.
func (m *Model) View() string {
	if m.width == 0 {
		return "  Initializing" + theme.SymbolEllipsis
	}

	title := theme.Title.Render(m.deps.Title)
	if m.statusBar.State == domain.ConnConnecting {
		title += " " + m.spinner.View() + theme.TextMuted.Render("connecting"+theme.SymbolEllipsis)
	}

	sections := []string{title}
	if bar := m.bar.View(); bar != "" {
		sections = append(sections, " "+bar)
	}
	sections = append(sections, m.logs.View())
	if line := m.footerLine(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.statusBar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) footerLine() string {
	switch {
	case m.err != "":
		return theme.TextError.Render(m.err)
	case m.result != "":
		return m.result
	}
	return ""
}

func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	reserved := 3 // title, progress, status bar
	if line := m.footerLine(); line != "" {
		reserved += lipgloss.Height(line)
	}
	m.bar.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.logs.SetSize(m.width, m.height-reserved)
}

func (m *Model) quit() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.deps.Controller != nil {
		m.deps.Controller.Stop()
	}
}

func (m *Model) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventTaskAttached:
		p, err := domain.DecodePayload[domain.TaskAttachedPayload](ev)
		if err != nil {
			return
		}
		m.session = ev.SessionID
		m.result = ""
		m.err = ""
		m.logs.Reset()
		m.statusBar.TaskID = p.TaskID
		m.layout()

	case domain.EventLogLine:
		if ev.SessionID != m.session {
			return
		}
		p, err := domain.DecodePayload[domain.LogLinePayload](ev)
		if err != nil {
			return
		}
		m.logs.Append(p.Line, p.Notice)

	case domain.EventLogState:
		if ev.SessionID != m.session {
			return
		}
		p, err := domain.DecodePayload[domain.LogStatePayload](ev)
		if err != nil {
			return
		}
		m.statusBar.State = p.State

	case domain.EventProgressUpdated:
		state, err := domain.DecodePayload[domain.ProgressState](ev)
		if err != nil {
			return
		}
		m.bar.SetState(state)

	case domain.EventTaskFinished:
		if ev.SessionID != m.session {
			return
		}
		p, err := domain.DecodePayload[domain.TaskFinishedPayload](ev)
		if err != nil {
			return
		}
		m.result = outcomeLine(p)
		m.layout()

	case domain.EventTaskLaunchFailed:
		p, err := domain.DecodePayload[domain.TaskLaunchFailedPayload](ev)
		if err != nil {
			return
		}
		m.session = ""
		m.logs.Reset()
		m.statusBar.TaskID = ""
		m.statusBar.State = domain.ConnIdle
		m.err = fmt.Sprintf("%s Launch of %s:%s failed (%s): %s", theme.SymbolError, p.ProjectID, p.Tag, p.Code, p.Error)
		m.layout()
	}
}

func outcomeLine(p domain.TaskFinishedPayload) string {
	switch p.Outcome {
	case domain.OutcomeSuccess:
		return theme.TextSuccess.Render(fmt.Sprintf("%s Task %s finished (%d lines)", theme.SymbolSuccess, p.TaskID, p.Lines))
	case domain.OutcomeFailure:
		return theme.TextError.Render(fmt.Sprintf("%s Task %s log stream failed after %d lines", theme.SymbolError, p.TaskID, p.Lines))
	default:
		return theme.TextMuted.Render(fmt.Sprintf("Task %s: %s", p.TaskID, p.Outcome))
	}
}
