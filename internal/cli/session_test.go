package cli

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/state"
)

type fakeSession struct {
	mu     sync.Mutex
	events []bus.Event
}

func (f *fakeSession) Publish(_ context.Context, ev bus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSession) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Kind())
	}
	return out
}

type fakeSender struct{ sent []string }

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fakeChatter struct{ replies []chat.Reply }

func (f fakeChatter) Chat(context.Context, string) ([]chat.Reply, error) {
	return f.replies, nil
}

func newTestModel(t *testing.T) (sessionModel, *state.Store, *fakeSession, *fakeSender) {
	t.Helper()
	store := state.NewStore()
	sess := &fakeSession{}
	sender := &fakeSender{}
	m := newSessionModel(context.Background(), SessionConfig{
		Store:      store,
		Session:    sess,
		Sender:     sender,
		ReadingWPM: 200,
	}, make(chan struct{}))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(sessionModel), store, sess, sender
}

func typeLine(m sessionModel, text string) (sessionModel, tea.Cmd) {
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(sessionModel), cmd
}

func TestReadingTime(t *testing.T) {
	require.Equal(t, minReplyTime, ReadingTime("hi", 200))
	require.Equal(t, 3*time.Second, ReadingTime(strings.Repeat("word ", 10), 200))
	require.Equal(t, maxReplyTime, ReadingTime(strings.Repeat("word ", 1000), 200))
	require.Equal(t, ReadingTime("a b c", 200), ReadingTime("a b c", 0))
}

func TestRenderTranscript(t *testing.T) {
	out := renderTranscript([]chat.ChatMessage{
		{ID: "1", Timestamp: 1, Message: "hello", Origin: chat.OriginLocal},
		{ID: "2", Timestamp: 2, Message: "hi there", Origin: chat.OriginRemote, SenderName: "Vyna", EditTimestamp: 3},
		{ID: "3", Timestamp: 3, Message: "anon", Origin: chat.OriginRemote},
	}, false, 80)

	require.Contains(t, out, "You")
	require.Contains(t, out, "Vyna")
	require.Contains(t, out, "(edited)")
	require.Contains(t, out, "Agent")
	require.Less(t, strings.Index(out, "hello"), strings.Index(out, "hi there"))
}

func TestRenderWelcomeWhenEmpty(t *testing.T) {
	require.Contains(t, renderTranscript(nil, true, 80), "Tips for getting started")
}

func TestSidePanel(t *testing.T) {
	url := "https://img.example.com/cat.png"
	snap := state.Snapshot{
		Illustration: state.Illustration{Visible: true, ImageURL: &url},
		Components:   []state.Component{{ID: "map", Content: "A map", Shown: true}},
	}
	require.True(t, hasSidePanel(snap))
	out := renderSidePanel(snap, 20)
	require.Contains(t, out, "cat.png")
	require.Contains(t, out, "map")

	long := "https://img.example.com/a/very/deep/path/to/the/illustration-cat.png"
	snap.Illustration.ImageURL = &long
	out = renderSidePanel(snap, 20)
	require.Contains(t, out, "illustration-cat.png")
	require.Contains(t, out, "…")

	require.False(t, hasSidePanel(state.Snapshot{}))
}

func TestShortenURL(t *testing.T) {
	require.Equal(t, "http://x/a.png", shortenURL("http://x/a.png", 26))
	got := shortenURL("https://example.com/images/cat.png", 10)
	require.Equal(t, "…s/cat.png", got)
	require.Equal(t, 10, len([]rune(got)))
}

func TestRenderAvatar(t *testing.T) {
	snap := state.Snapshot{Replies: []chat.Reply{{Text: "Hello!", FacialExpression: "smile"}, {Text: "next"}}}
	out := renderAvatar(snap)
	require.Contains(t, out, "Hello!")
	require.Contains(t, out, "smile")
	require.Contains(t, out, "+1 queued")

	require.Contains(t, renderAvatar(state.Snapshot{CameraZoomed: true}), "close-up")
}

func TestReplyPlaybackPopsAfterReadingTime(t *testing.T) {
	m, store, sess, _ := newTestModel(t)
	store.EnqueueReplies([]chat.Reply{{Text: "one"}, {Text: "two"}})

	next, cmd := m.Update(storeChangedMsg{})
	m = next.(sessionModel)
	require.NotNil(t, cmd)
	require.True(t, m.playing)
	seq := m.playSeq

	// A stale timer is ignored.
	next, cmd = m.Update(replyDoneMsg{seq: seq - 1})
	m = next.(sessionModel)
	require.Nil(t, cmd)
	require.True(t, m.playing)

	next, cmd = m.Update(replyDoneMsg{seq: seq})
	m = next.(sessionModel)
	require.False(t, m.playing)
	cmd()
	require.Equal(t, []string{"reply_played"}, sess.kinds())

	// Until the pop lands the head must not be replayed.
	next, _ = m.Update(storeChangedMsg{})
	m = next.(sessionModel)
	require.False(t, m.playing)

	store.ReplyPlayed()
	next, _ = m.Update(storeChangedMsg{})
	m = next.(sessionModel)
	require.True(t, m.playing)
	head, _ := m.snap.CurrentReply()
	require.Equal(t, "two", head.Text)
}

func TestBlockingAlertNeedsKeyPress(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	next, _ := m.Update(alertMsg(bus.Alert{Kind: bus.AlertConnection, Title: "There was an error connecting to the agent"}))
	m = next.(sessionModel)
	require.NotNil(t, m.alert)
	require.Contains(t, m.View(), "enter to dismiss")

	next, _ = m.Update(alertExpiredMsg{seq: m.alertSeq})
	m = next.(sessionModel)
	require.NotNil(t, m.alert, "blocking alerts do not expire")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(sessionModel)
	require.Nil(t, m.alert)
}

func TestDismissibleAlertExpires(t *testing.T) {
	m, _, _, _ := newTestModel(t)

	next, _ := m.Update(alertMsg(bus.Alert{Kind: bus.AlertTimeout, Title: "Session ended", Description: "Agent did not join the room."}))
	m = next.(sessionModel)
	require.Contains(t, m.View(), "Agent did not join the room.")

	next, _ = m.Update(alertExpiredMsg{seq: m.alertSeq})
	m = next.(sessionModel)
	require.Nil(t, m.alert)
}

func TestSubmitRoutesText(t *testing.T) {
	m, _, sess, sender := newTestModel(t)

	m, cmd := typeLine(m, "hello agent")
	require.NotNil(t, cmd)
	require.Equal(t, sendResultMsg{}, cmd())
	require.Equal(t, []string{"hello agent"}, sender.sent)
	require.Empty(t, m.input.Value())

	m, cmd = typeLine(m, "/close")
	cmd()
	m, cmd = typeLine(m, "/zoom")
	cmd()
	require.Equal(t, []string{"illustration_closed", "camera_zoom"}, sess.kinds())
	require.Equal(t, bus.CameraZoomChanged{Zoomed: false}, sess.events[1])

	_, cmd = typeLine(m, "   ")
	require.Nil(t, cmd)
}

func TestAskWithoutBackend(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	m, cmd := typeLine(m, "/ask hi")
	require.Nil(t, cmd)
	require.Equal(t, "chat backend not configured", m.errLine)
}

func TestAskCmdTogglesLoading(t *testing.T) {
	sess := &fakeSession{}
	cmd := askCmd(context.Background(), sess, fakeChatter{replies: []chat.Reply{{Text: "hi"}}}, "hello")
	require.Equal(t, sendResultMsg{}, cmd())
	require.Equal(t, []string{"loading", "replies", "loading"}, sess.kinds())
}

type stuckLoading struct{ fakeSession }

func (s *stuckLoading) Publish(ctx context.Context, ev bus.Event) error {
	if l, ok := ev.(bus.LoadingChanged); ok && !l.Loading {
		return errors.New("queue full")
	}
	return s.fakeSession.Publish(ctx, ev)
}

func TestAskCmdReportsStuckLoading(t *testing.T) {
	sess := &stuckLoading{}
	cmd := askCmd(context.Background(), sess, fakeChatter{replies: []chat.Reply{{Text: "hi"}}}, "hello")
	res := cmd().(sendResultMsg)
	require.ErrorContains(t, res.err, "queue full")
	require.Equal(t, []string{"loading", "replies"}, sess.kinds())
}

func TestAlertFeed(t *testing.T) {
	b := bus.NewEventBus()
	feed := AlertFeed(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.DispatchAlerts(ctx)
		close(done)
	}()

	b.PublishAlert(bus.Alert{Kind: bus.AlertTimeout, Title: "Session ended"})
	a := <-feed
	require.Equal(t, "Session ended", a.Title)
	cancel()
	<-done
}
