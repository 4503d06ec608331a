package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/state"
)

const (
	minReplyTime = 1500 * time.Millisecond
	maxReplyTime = 15 * time.Second
	sidePanelW   = 32
	// border and padding take four columns of the panel
	panelTextW = sidePanelW - 6
)

// ReadingTime is how long a reply stays on screen before the next one plays.
func ReadingTime(text string, wpm int) time.Duration {
	if wpm <= 0 {
		wpm = 200
	}
	words := len(strings.Fields(text))
	d := time.Duration(words) * time.Minute / time.Duration(wpm)
	return min(max(d, minReplyTime), maxReplyTime)
}

// renderTranscript formats the merged transcript for the viewport.
func renderTranscript(msgs []chat.ChatMessage, showTimes bool, width int) string {
	if len(msgs) == 0 {
		return renderWelcome()
	}

	wrap := lipgloss.NewStyle().Width(max(width-4, 10))
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString("\n  ")
		if showTimes {
			sb.WriteString(DimStyle.Render(m.Time().Format("15:04:05")) + " ")
		}
		sb.WriteString(senderLabel(m))
		if m.Edited() {
			sb.WriteString(" " + DimStyle.Render("(edited)"))
		}
		sb.WriteString("\n")
		for _, line := range strings.Split(wrap.Render(m.Message), "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

func senderLabel(m chat.ChatMessage) string {
	if m.Origin == chat.OriginLocal {
		return UserLabel.Render("You")
	}
	name := m.SenderName
	if name == "" && m.From != nil {
		name = m.From.Identity
	}
	if name == "" {
		name = "Agent"
	}
	return BotLabel.Render(name)
}

func renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("  %s vyna", Logo)) + DimStyle.Render(" voice agent companion") + "\n\n")
	sb.WriteString("  " + BoldStyle.Render("Tips for getting started:") + "\n")
	sb.WriteString(DimStyle.Render("  1. Type to chat with the agent in the room") + "\n")
	sb.WriteString(DimStyle.Render("  2. /ask <text> sends text to the chat backend") + "\n")
	sb.WriteString(DimStyle.Render("  3. /close hides the illustration, /zoom toggles the camera") + "\n")
	sb.WriteString(DimStyle.Render("  4. /quit or ctrl+c to leave") + "\n")
	return sb.String()
}

// hasSidePanel reports whether the illustration or component panel is shown.
func hasSidePanel(s state.Snapshot) bool {
	return s.Illustration.Visible || len(s.Components) > 0
}

func renderSidePanel(s state.Snapshot, height int) string {
	var sb strings.Builder
	if s.Illustration.Visible {
		sb.WriteString(BoldStyle.Render("Illustration") + "\n")
		if s.Illustration.ImageURL != nil {
			sb.WriteString(shortenURL(*s.Illustration.ImageURL, panelTextW) + "\n")
		} else {
			sb.WriteString(DimStyle.Render("(no image)") + "\n")
		}
		sb.WriteString(DimStyle.Render("/close to dismiss") + "\n")
	}
	for _, c := range s.Components {
		if !c.Shown {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(BoldStyle.Render(c.ID) + "\n")
		if c.Content != "" {
			sb.WriteString(c.Content + "\n")
		}
	}
	return PanelStyle.Width(sidePanelW - 2).Height(max(height-2, 1)).Render(strings.TrimRight(sb.String(), "\n"))
}

// shortenURL keeps the tail of u, where the file name is, within width columns.
func shortenURL(u string, width int) string {
	r := []rune(u)
	if len(r) <= width || width < 2 {
		return u
	}
	return "…" + string(r[len(r)-(width-1):])
}

// renderAvatar shows the reply being played, standing in for the 3D avatar.
func renderAvatar(s state.Snapshot) string {
	r, ok := s.CurrentReply()
	if !ok {
		zoom := "wide"
		if s.CameraZoomed {
			zoom = "close-up"
		}
		return DimStyle.Render(fmt.Sprintf(" avatar idle · camera %s", zoom))
	}

	var tags []string
	if r.FacialExpression != "" {
		tags = append(tags, r.FacialExpression)
	}
	if r.Animation != "" {
		tags = append(tags, r.Animation)
	}
	line := " " + BotLabel.Render("▶") + " " + r.Text
	if len(tags) > 0 {
		line += " " + DimStyle.Render("["+strings.Join(tags, ", ")+"]")
	}
	if n := len(s.Replies) - 1; n > 0 {
		line += DimStyle.Render(fmt.Sprintf(" +%d queued", n))
	}
	return line
}

func renderAlert(title, description string, blocking bool, width int) string {
	hint := "dismisses automatically"
	if blocking {
		hint = "enter to dismiss"
	}
	body := ErrStyle.Bold(true).Render(title) + "\n" + description + "\n" + DimStyle.Render(hint)
	return AlertStyle.Width(max(width-4, 20)).Render(body)
}
