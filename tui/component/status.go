package component

import (
	"fmt"

	"gatherinfo/logs"
	"gatherinfo/pubsub"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusModel is a spinner with the latest progress message next to it.
type StatusModel struct {
	spinner spinner.Model
	running bool
	text    string
	width   int
}

func NewStatusModel() StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Jump
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return StatusModel{
		spinner: s,
		text:    "Ready",
	}
}

func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update follows the run: every log event becomes the status text, the
// finished event stops the spinner.
func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pubsub.Event[logs.Event]:
		switch msg.Type {
		case pubsub.LogEvent:
			m.text = msg.Payload.Message
			if !m.running {
				m.running = true
				return m, m.spinner.Tick
			}
		case pubsub.FinishedEvent:
			m.running = false
			m.text = "Done"
			return m, nil
		}
	}

	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m StatusModel) View() string {
	style := lipgloss.NewStyle().Padding(1, 0)
	if m.width > 0 {
		style = style.MaxWidth(m.width)
	}
	content := m.text
	if m.running {
		content = fmt.Sprintf("%s %s", m.spinner.View(), m.text)
	}
	return style.Render(content)
}

func (m StatusModel) Start(text string) (StatusModel, tea.Cmd) {
	m.running = true
	m.text = text
	return m, m.spinner.Tick
}

// Tick advances a running spinner. Use it as the first command after Start.
func (m StatusModel) Tick() tea.Msg {
	return m.spinner.Tick()
}

func (m StatusModel) Stop(text string) StatusModel {
	m.running = false
	m.text = text
	return m
}

func (m StatusModel) SetWidth(width int) StatusModel {
	m.width = width
	return m
}

func (m StatusModel) Text() string { return m.text }

func (m StatusModel) IsRunning() bool {
	return m.running
}
