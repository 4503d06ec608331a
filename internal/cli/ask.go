package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/state"
)

type askResultMsg struct {
	count int
	err   error
}

// AskConfig holds what a single chat backend round trip needs.
type AskConfig struct {
	Store      *state.Store
	Session    Publisher
	Chatter    Chatter
	ReadingWPM int
}

// --- single message model ---

type askModel struct {
	cfg     AskConfig
	ctx     context.Context
	message string
	spinner spinner.Model
	changes <-chan struct{}

	head      *chat.Reply
	playing   bool
	playSeq   int
	popTarget uint64
	expected  int
	played    int
	answered  bool
	err       error
}

func (m askModel) Init() tea.Cmd {
	cfg, ctx, message := m.cfg, m.ctx, m.message
	return tea.Batch(
		m.spinner.Tick,
		waitForChange(m.changes),
		func() tea.Msg {
			if err := cfg.Session.Publish(ctx, bus.LoadingChanged{Loading: true}); err != nil {
				return askResultMsg{err: err}
			}
			defer cfg.Session.Publish(ctx, bus.LoadingChanged{Loading: false})

			replies, err := cfg.Chatter.Chat(ctx, message)
			if err != nil {
				return askResultMsg{err: err}
			}
			if err := cfg.Session.Publish(ctx, bus.RepliesReceived{Replies: replies}); err != nil {
				return askResultMsg{err: err}
			}
			return askResultMsg{count: len(replies)}
		},
	)
}

func (m askModel) finished() bool {
	return m.err != nil || (m.answered && m.played >= m.expected)
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}

	case askResultMsg:
		m.answered = true
		m.expected = msg.count
		m.err = msg.err
		if m.finished() {
			return m, tea.Quit
		}
		return m, nil

	case storeChangedMsg:
		cmds := []tea.Cmd{waitForChange(m.changes)}
		snap := m.cfg.Store.Snapshot()
		if !m.playing && snap.RepliesPlayed >= m.popTarget {
			if r, ok := snap.CurrentReply(); ok {
				m.popTarget = snap.RepliesPlayed + 1
				m.head = &r
				m.playing = true
				m.playSeq++
				seq := m.playSeq
				cmds = append(cmds, tea.Tick(ReadingTime(r.Text, m.cfg.ReadingWPM), func(time.Time) tea.Msg {
					return replyDoneMsg{seq: seq}
				}))
			}
		}
		return m, tea.Batch(cmds...)

	case replyDoneMsg:
		if msg.seq != m.playSeq || !m.playing {
			return m, nil
		}
		m.playing = false
		m.played++
		line := renderReply(*m.head)
		m.head = nil
		cfg, ctx := m.cfg, m.ctx
		cmds := []tea.Cmd{
			tea.Println(line),
			func() tea.Msg {
				cfg.Session.Publish(ctx, bus.ReplyPlayed{})
				return nil
			},
		}
		if m.finished() {
			cmds = append(cmds, tea.Quit)
		}
		return m, tea.Sequence(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m askModel) View() string {
	if m.finished() {
		return ""
	}
	if m.head != nil {
		return fmt.Sprintf("\n %s %s\n", m.spinner.View(), m.head.Text)
	}
	return fmt.Sprintf("\n %s Waiting for the agent...\n", m.spinner.View())
}

func renderReply(r chat.Reply) string {
	var sb strings.Builder
	sb.WriteString("  " + BotLabel.Render("vyna"))
	if r.FacialExpression != "" || r.Animation != "" {
		sb.WriteString(" " + DimStyle.Render(strings.Trim(r.FacialExpression+" "+r.Animation, " ")))
	}
	for _, line := range strings.Split(r.Text, "\n") {
		sb.WriteString("\n  " + line)
	}
	return sb.String()
}

// RunAsk sends one message to the chat backend and plays the replies in order.
func RunAsk(ctx context.Context, cfg AskConfig, message string) error {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)

	changes, cancel := cfg.Store.Subscribe()
	defer cancel()

	m := askModel{
		cfg:     cfg,
		ctx:     ctx,
		message: message,
		spinner: sp,
		changes: changes,
	}

	fmt.Println()
	fmt.Println("  " + UserLabel.Render("You"))
	fmt.Println("  " + message)
	fmt.Println()

	p := tea.NewProgram(m, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}

	fm := final.(askModel)
	if fm.err != nil {
		fmt.Println(ErrStyle.Render("\n  Error: " + fm.err.Error()))
		return fm.err
	}
	if fm.expected == 0 {
		fmt.Println(DimStyle.Render("  (no reply)"))
	}
	fmt.Println()
	return nil
}
