package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/metrics"
	"github.com/joebot/vyna/internal/rpc"
	"github.com/joebot/vyna/internal/state"
)

// AgentStateAttribute is the participant attribute a voice agent publishes
// its lifecycle state under.
const AgentStateAttribute = "lk.agent.state"

// DefaultResponseTimeout bounds how long a remote command waits for the loop.
const DefaultResponseTimeout = 10 * time.Second

// Loop is the single writer of the shared store. It consumes session events
// in order and runs remote commands between them, so every validate-then-mutate
// sequence is atomic with respect to other events.
type Loop struct {
	bus        *bus.EventBus
	store      *state.Store
	dispatcher *rpc.Dispatcher

	onAgentState func(state.AgentState)

	// agents maps participant identity to the last reported agent state.
	// Owned by the consumer goroutine.
	agents map[string]string
}

// LoopConfig holds configuration for creating a session loop.
type LoopConfig struct {
	Bus        *bus.EventBus
	Store      *state.Store
	Dispatcher *rpc.Dispatcher

	// OnAgentState is called on the loop goroutine whenever the derived
	// agent state changes.
	OnAgentState func(state.AgentState)
}

// NewLoop creates a new session loop.
func NewLoop(cfg LoopConfig) *Loop {
	d := cfg.Dispatcher
	if d == nil {
		d = rpc.NewDispatcher(cfg.Store)
	}
	return &Loop{
		bus:          cfg.Bus,
		store:        cfg.Store,
		dispatcher:   d,
		onAgentState: cfg.OnAgentState,
		agents:       make(map[string]string),
	}
}

// Dispatcher returns the remote command dispatcher driven by this loop.
func (l *Loop) Dispatcher() *rpc.Dispatcher { return l.dispatcher }

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("Session loop started")
	l.bus.Run(ctx, l.handle)
	slog.Info("Session loop stopped")
}

// Publish enqueues an event for the loop.
func (l *Loop) Publish(ctx context.Context, ev bus.Event) error {
	if err := l.bus.Publish(ctx, ev); err != nil {
		metrics.EventsDropped.Inc()
		return err
	}
	return nil
}

// Invoke hands a remote command to the loop and waits for its result. It is
// safe to call from any goroutine and always returns a string.
func (l *Loop) Invoke(inv rpc.Invocation) string {
	timeout := inv.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ev := bus.NewRPCInvoked(inv)
	if err := l.Publish(ctx, ev); err != nil {
		slog.Warn("rpc: session unavailable", "method", inv.Method, "err", err)
		return rpc.Result{Error: "session unavailable: " + err.Error()}.String()
	}

	select {
	case res := <-ev.Reply:
		return res
	case <-ctx.Done():
		if !ev.Claim() {
			// The loop is already running it; its result is authoritative.
			return <-ev.Reply
		}
		slog.Warn("rpc: timed out waiting for session loop", "method", inv.Method)
		return rpc.Result{Error: "timed out"}.String()
	case <-l.bus.Done():
		if !ev.Claim() {
			return <-ev.Reply
		}
		return rpc.Result{Error: "session closed"}.String()
	}
}

func (l *Loop) handle(ctx context.Context, ev bus.Event) {
	metrics.SessionEvents.WithLabelValues(ev.Kind()).Inc()

	switch e := ev.(type) {
	case bus.RPCInvoked:
		if !e.Claim() {
			slog.Debug("rpc: caller gave up, skipping", "method", e.Invocation.Method)
			return
		}
		e.Reply <- l.dispatcher.Dispatch(e.Invocation)

	case bus.ChatReceived:
		l.store.UpsertChat(e.Message)

	case bus.TranscriptionReceived:
		for _, seg := range e.Segments {
			l.store.UpsertSegment(seg)
		}

	case bus.Connected:
		l.store.SetLocalParticipant(e.Local)
		l.store.SetConnected(true)
		l.notifyAgentState(l.store.AgentState())
		l.refreshAgentState()

	case bus.ParticipantJoined:
		p := e.Participant
		if st, ok := e.Attributes[AgentStateAttribute]; ok {
			l.agents[p.Identity] = st
		}
		if _, ok := l.agents[p.Identity]; ok {
			p.IsAgent = true
		}
		l.store.AddRemote(p)
		l.refreshAgentState()

	case bus.AttributesChanged:
		st, ok := e.Changed[AgentStateAttribute]
		if !ok {
			return
		}
		if _, known := l.agents[e.Identity]; !known {
			for _, p := range l.store.Participants().Remote {
				if p.Identity == e.Identity {
					p.IsAgent = true
					l.store.AddRemote(p)
				}
			}
		}
		l.agents[e.Identity] = st
		l.refreshAgentState()

	case bus.ParticipantLeft:
		delete(l.agents, e.Identity)
		l.store.RemoveRemote(e.Identity)
		l.refreshAgentState()

	case bus.Disconnected:
		slog.Info("Session disconnected", "reason", e.Reason)
		l.agents = make(map[string]string)
		l.store.Clear()
		l.store.SetConnected(false)
		l.notifyAgentState(state.AgentDisconnected)

	case bus.RepliesReceived:
		l.store.EnqueueReplies(e.Replies)

	case bus.ReplyPlayed:
		l.store.ReplyPlayed()

	case bus.LoadingChanged:
		l.store.SetLoading(e.Loading)

	case bus.CameraZoomChanged:
		l.store.SetCameraZoomed(e.Zoomed)

	case bus.IllustrationClosed:
		l.store.HideIllustration()

	default:
		slog.Warn("session: unhandled event", "kind", ev.Kind())
	}
}

// refreshAgentState derives the agent state from the known agents: no agent
// means connecting, an agent without a recognised state is initializing.
func (l *Loop) refreshAgentState() {
	if !l.store.Connected() {
		return
	}

	next := state.AgentConnecting
	for _, raw := range l.agents {
		st := state.AgentState(raw)
		if !st.Available() {
			st = state.AgentInitializing
		}
		if next == state.AgentConnecting || (st.Available() && !next.Available()) {
			next = st
		}
	}

	if l.store.AgentState() == next {
		return
	}
	l.store.SetAgentState(next)
	l.notifyAgentState(next)
}

func (l *Loop) notifyAgentState(st state.AgentState) {
	slog.Debug("agent state", "state", st)
	if l.onAgentState != nil {
		l.onAgentState(st)
	}
}

// LocalMessage builds the chat message recorded for text this client sends.
func LocalMessage(id, text string, from chat.Participant, now time.Time) chat.ChatMessage {
	p := from
	return chat.ChatMessage{
		ID:         id,
		Timestamp:  now.UnixMilli(),
		Message:    text,
		Origin:     chat.OriginLocal,
		SenderName: from.Name,
		From:       &p,
	}
}
