package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/vyna/internal/state"
)

const Logo = "◉"
const Version = "0.1.0"

var (
	Accent = lipgloss.Color("#00D4FF")
	Subtle = lipgloss.Color("#555555")
	Green  = lipgloss.Color("#04B575")
	Yellow = lipgloss.Color("#E5C07B")
	Red    = lipgloss.Color("#FF4444")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	BoldStyle  = lipgloss.NewStyle().Bold(true)
	BotLabel   = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	UserLabel  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	ErrStyle   = lipgloss.NewStyle().Foreground(Red)
	WarnStyle  = lipgloss.NewStyle().Foreground(Yellow)
	OkStyle    = lipgloss.NewStyle().Foreground(Green).Bold(true)
	DimStyle   = lipgloss.NewStyle().Foreground(Subtle)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 1)
	AlertStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(Red).
			Padding(0, 1)
)

func StatusBadge(ok bool) string {
	if ok {
		return OkStyle.Render("✓")
	}
	return DimStyle.Render("✗")
}

// AgentBadge renders the agent state with a color for its availability.
func AgentBadge(st state.AgentState) string {
	label := "● " + string(st)
	switch {
	case st.Available():
		return OkStyle.Render(label)
	case st == state.AgentDisconnected:
		return DimStyle.Render(label)
	default:
		return WarnStyle.Render(label)
	}
}
