// Package progress is the terminal view of a single run: a spinner with the
// latest step, the recent progress lines, and the rendered answer at the end.
package progress

import (
	"context"
	"strings"

	"gatherinfo/logs"
	"gatherinfo/pubsub"
	"gatherinfo/tui/component"
	"gatherinfo/tui/component/renderer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const DefaultVisibleLines = 12

// RunFunc performs the work and returns Markdown. Progress goes to the sink
// the caller bound to the watched run.
type RunFunc func(ctx context.Context) (string, error)

type doneMsg struct {
	answer string
	err    error
}

type Model struct {
	status   component.StatusModel
	renderer *renderer.Renderer

	title   string
	lines   []string
	visible int

	sub    <-chan pubsub.Event[logs.Event]
	run    RunFunc
	ctx    context.Context
	cancel context.CancelFunc

	done   bool
	answer string
	err    error
	width  int
}

// New subscribes to run id of relay right away, so no event emitted by run
// is missed.
func New(ctx context.Context, relay *logs.Relay, id, title string, run RunFunc) Model {
	ctx, cancel := context.WithCancel(ctx)
	status, _ := component.NewStatusModel().Start("Searching...")
	return Model{
		status:   status,
		renderer: renderer.New(nil),
		title:    title,
		visible:  DefaultVisibleLines,
		sub:      relay.Subscribe(ctx, id),
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.status.Tick, m.waitForEvent(), m.runCmd())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.sub
		if !ok {
			return nil
		}
		return ev
	}
}

func (m Model) runCmd() tea.Cmd {
	return func() tea.Msg {
		answer, err := m.run(m.ctx)
		return doneMsg{answer: answer, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.status = m.status.SetWidth(msg.Width)
		m.renderer.SetWidth(msg.Width)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}

	case pubsub.Event[logs.Event]:
		if msg.Type == pubsub.LogEvent {
			m.lines = append(m.lines, m.renderer.RenderEvent(msg.Payload))
		}
		if msg.Type != pubsub.FinishedEvent {
			cmds = append(cmds, m.waitForEvent())
		}

	case doneMsg:
		m.cancel()
		m.done = true
		m.answer, m.err = msg.answer, msg.err
		if m.err != nil {
			m.status = m.status.Stop("Failed")
		} else {
			m.status = m.status.Stop("Done")
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.status, cmd = m.status.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	parts := []string{lipgloss.NewStyle().Bold(true).Render(m.title)}

	lines := m.lines
	if !m.done && len(lines) > m.visible {
		lines = lines[len(lines)-m.visible:]
	}
	if len(lines) > 0 {
		parts = append(parts, strings.Join(lines, "\n"))
	}
	parts = append(parts, m.status.View())

	switch {
	case m.err != nil:
		parts = append(parts, m.renderer.RenderError(m.err))
	case m.done:
		parts = append(parts, m.renderer.RenderAnswer(m.answer))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

// Answer returns the outcome once the program has quit.
func (m Model) Answer() (string, error) {
	return m.answer, m.err
}
