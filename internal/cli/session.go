package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/state"
)

const alertTTL = 6 * time.Second

// Publisher feeds UI events to the session loop.
type Publisher interface {
	Publish(ctx context.Context, ev bus.Event) error
}

// Sender delivers typed chat text to the room.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Chatter performs a chat backend round trip.
type Chatter interface {
	Chat(ctx context.Context, message string) ([]chat.Reply, error)
}

// --- message types ---

type storeChangedMsg struct{}

type alertMsg bus.Alert

type alertExpiredMsg struct{ seq int }

type replyDoneMsg struct{ seq int }

type sendResultMsg struct{ err error }

// --- session config ---

// SessionConfig holds what the session TUI reads from and writes to.
type SessionConfig struct {
	Store   *state.Store
	Session Publisher
	Sender  Sender
	Chatter Chatter
	Alerts  <-chan bus.Alert

	ReadingWPM int
	ShowTimes  bool
	Title      string
}

// --- session model ---

type sessionModel struct {
	cfg SessionConfig
	ctx context.Context

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	changes <-chan struct{}
	snap    state.Snapshot

	alert    *bus.Alert
	alertSeq int

	playing   bool
	playSeq   int
	popTarget uint64

	errLine string
	ready   bool
	width   int
	height  int
}

func newSessionModel(ctx context.Context, cfg SessionConfig, changes <-chan struct{}) sessionModel {
	ti := textinput.New()
	ti.Placeholder = "Say something to the agent..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)

	if cfg.Title == "" {
		cfg.Title = "vyna"
	}

	return sessionModel{
		cfg:      cfg,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		changes:  changes,
		snap:     cfg.Store.Snapshot(),
	}
}

func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes), waitForAlert(m.cfg.Alerts))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func waitForAlert(ch <-chan bus.Alert) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		a, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg(a)
	}
}

func (m sessionModel) publish(ev bus.Event) tea.Cmd {
	return func() tea.Msg {
		if err := m.cfg.Session.Publish(m.ctx, ev); err != nil {
			return sendResultMsg{err: err}
		}
		return nil
	}
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case storeChangedMsg:
		m.snap = m.cfg.Store.Snapshot()
		m.layout()
		cmds := []tea.Cmd{waitForChange(m.changes)}
		if cmd := m.playNext(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case replyDoneMsg:
		if msg.seq != m.playSeq || !m.playing {
			return m, nil
		}
		m.playing = false
		m.popTarget = m.snap.RepliesPlayed + 1
		return m, m.publish(bus.ReplyPlayed{})

	case alertMsg:
		a := bus.Alert(msg)
		m.alert = &a
		m.alertSeq++
		cmds := []tea.Cmd{waitForAlert(m.cfg.Alerts)}
		if !a.Blocking() {
			seq := m.alertSeq
			cmds = append(cmds, tea.Tick(alertTTL, func(time.Time) tea.Msg { return alertExpiredMsg{seq: seq} }))
		}
		return m, tea.Batch(cmds...)

	case alertExpiredMsg:
		if msg.seq == m.alertSeq && m.alert != nil && !m.alert.Blocking() {
			m.alert = nil
		}
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.errLine = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter, tea.KeyEsc:
			if m.alert != nil && m.alert.Blocking() {
				m.alert = nil
				return m, nil
			}
			if msg.Type == tea.KeyEsc {
				return m, nil
			}
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// playNext starts the reading timer for the head reply once the previous
// one has been popped.
func (m *sessionModel) playNext() tea.Cmd {
	if m.playing || m.snap.RepliesPlayed < m.popTarget {
		return nil
	}
	head, ok := m.snap.CurrentReply()
	if !ok {
		return nil
	}
	m.playing = true
	m.playSeq++
	seq := m.playSeq
	return tea.Tick(ReadingTime(head.Text, m.cfg.ReadingWPM), func(time.Time) tea.Msg {
		return replyDoneMsg{seq: seq}
	})
}

func (m sessionModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.errLine = ""

	cmd, arg, _ := strings.Cut(text, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit", ":q":
		return m, tea.Quit
	case "/close":
		return m, m.publish(bus.IllustrationClosed{})
	case "/zoom":
		return m, m.publish(bus.CameraZoomChanged{Zoomed: !m.snap.CameraZoomed})
	case "/ask":
		if m.cfg.Chatter == nil {
			m.errLine = "chat backend not configured"
			return m, nil
		}
		return m, askCmd(m.ctx, m.cfg.Session, m.cfg.Chatter, strings.TrimSpace(arg))
	}

	if m.cfg.Sender == nil {
		m.errLine = "not connected"
		return m, nil
	}
	sender, ctx := m.cfg.Sender, m.ctx
	return m, func() tea.Msg {
		return sendResultMsg{err: sender.Send(ctx, text)}
	}
}

// askCmd runs a chat backend round trip, toggling the loading flag around it.
func askCmd(ctx context.Context, pub Publisher, c Chatter, text string) tea.Cmd {
	return func() tea.Msg {
		if err := pub.Publish(ctx, bus.LoadingChanged{Loading: true}); err != nil {
			return sendResultMsg{err: err}
		}
		replies, err := c.Chat(ctx, text)
		if err == nil {
			err = pub.Publish(ctx, bus.RepliesReceived{Replies: replies})
		}
		if perr := pub.Publish(ctx, bus.LoadingChanged{Loading: false}); perr != nil {
			slog.Warn("ask: could not clear loading", "err", perr)
			if err == nil {
				err = perr
			}
		}
		return sendResultMsg{err: err}
	}
}

// layout sizes the viewport around the fixed rows and the side panel.
func (m *sessionModel) layout() {
	if !m.ready {
		return
	}
	// header(1) + divider(1) + viewport + divider(1) + avatar(1) + input(1) + status(1) = 6 fixed
	vpHeight := max(m.height-6, 1)
	vpWidth := m.width
	if hasSidePanel(m.snap) {
		vpWidth = max(m.width-sidePanelW, 10)
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.viewport.SetContent(renderTranscript(m.snap.Transcript, m.cfg.ShowTimes, vpWidth))
	if atBottom {
		m.viewport.GotoBottom()
	}
	m.input.Width = m.width - 4
}

func (m sessionModel) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	header := TitleStyle.Render(fmt.Sprintf(" %s %s", Logo, m.cfg.Title)) + "  " + AgentBadge(m.snap.AgentState)
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	body := m.viewport.View()
	if hasSidePanel(m.snap) {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, renderSidePanel(m.snap, m.viewport.Height))
	}
	if m.alert != nil {
		body = renderAlert(m.alert.Title, m.alert.Description, m.alert.Blocking(), m.width)
	}

	var inputLine string
	if m.snap.Loading {
		inputLine = fmt.Sprintf(" %s Waiting for the agent...", m.spinner.View())
	} else {
		inputLine = " " + m.input.View()
	}

	return header + "\n" +
		divider + "\n" +
		body + "\n" +
		divider + "\n" +
		renderAvatar(m.snap) + "\n" +
		inputLine + "\n" +
		m.renderStatusBar()
}

func (m sessionModel) renderStatusBar() string {
	left := " " + StatusBadge(m.snap.Connected) + DimStyle.Render(" room")
	if n := len(m.snap.Participants.Remote); n > 0 {
		left += DimStyle.Render(fmt.Sprintf(" · %d remote", n))
	}
	if m.errLine != "" {
		left += "  " + ErrStyle.Render(m.errLine)
	}
	right := DimStyle.Render("ctrl+c quit ")

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

// AlertFeed subscribes to the bus alerts and hands them to the TUI.
func AlertFeed(b *bus.EventBus) <-chan bus.Alert {
	ch := make(chan bus.Alert, 8)
	b.SubscribeAlerts(func(_ context.Context, a bus.Alert) error {
		select {
		case ch <- a:
			return nil
		default:
			return fmt.Errorf("alert feed full, dropped %q", a.Title)
		}
	})
	return ch
}

// RunSession starts the interactive session TUI.
func RunSession(ctx context.Context, cfg SessionConfig) error {
	changes, cancel := cfg.Store.Subscribe()
	defer cancel()

	m := newSessionModel(ctx, cfg, changes)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
