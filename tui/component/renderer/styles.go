package renderer

import (
	"github.com/charmbracelet/lipgloss"

	"gatherinfo/logs"
)

// Styles colors progress lines by level.
type Styles struct {
	Info    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Debug   lipgloss.Style
	Extra   lipgloss.Style
	Header  lipgloss.Style
	Indent  lipgloss.Style
}

func DefaultStyles() *Styles {
	return &Styles{
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true),
		Debug:   lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).Faint(true),
		Extra:   lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89")).Italic(true),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Bold(true),
		Indent:  lipgloss.NewStyle().PaddingLeft(2),
	}
}

func (s *Styles) forLevel(level logs.Level) lipgloss.Style {
	switch level {
	case logs.LevelSuccess:
		return s.Success
	case logs.LevelError:
		return s.Error
	case logs.LevelDebug:
		return s.Debug
	default:
		return s.Info
	}
}

// Icons per level.
var Icons = map[logs.Level]string{
	logs.LevelInfo:    "•",
	logs.LevelSuccess: "✓",
	logs.LevelError:   "✗",
	logs.LevelDebug:   "·",
}
