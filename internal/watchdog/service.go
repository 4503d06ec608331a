package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/metrics"
	"github.com/joebot/vyna/internal/state"
)

// DefaultTimeout is how long the agent may stay unavailable after a state change.
const DefaultTimeout = 20 * time.Second

const (
	// ReasonNotJoined is reported when no agent ever joined the room.
	ReasonNotJoined = "Agent did not join the room."

	// ReasonNotInitialized is reported when the agent joined but never became available.
	ReasonNotInitialized = "Agent connected but did not complete initializing."

	alertTitle = "Session ended"
)

// Disconnect tears down the session after a timeout.
type Disconnect func(ctx context.Context, reason string)

// Service ends the session when the agent fails to become available in time.
type Service struct {
	timeout    time.Duration
	bus        *bus.EventBus
	disconnect Disconnect
	states     chan state.AgentState
}

// NewService creates a new watchdog.
func NewService(timeout time.Duration, b *bus.EventBus, disconnect Disconnect) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		timeout:    timeout,
		bus:        b,
		disconnect: disconnect,
		states:     make(chan state.AgentState, 1),
	}
}

// Observe reports an agent state change. It never blocks; only the latest
// pending state is kept.
func (s *Service) Observe(st state.AgentState) {
	for {
		select {
		case s.states <- st:
			return
		default:
		}
		select {
		case <-s.states:
		default:
		}
	}
}

// Run arms the timer on every observed state change. It blocks until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	slog.Info("Watchdog started", "timeout", s.timeout)
	timer := time.NewTimer(s.timeout)
	timer.Stop()
	defer timer.Stop()

	current := state.AgentDisconnected
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watchdog stopped")
			return
		case current = <-s.states:
			if current == state.AgentDisconnected {
				timer.Stop()
				continue
			}
			timer.Reset(s.timeout)
		case <-timer.C:
			s.fire(ctx, current)
		}
	}
}

func (s *Service) fire(ctx context.Context, current state.AgentState) {
	reason := Reason(current)
	if reason == "" {
		return
	}

	slog.Warn("Watchdog: agent unavailable", "state", current, "reason", reason)
	metrics.AgentTimeouts.Inc()
	if s.bus != nil {
		s.bus.PublishAlert(bus.Alert{Kind: bus.AlertTimeout, Title: alertTitle, Description: reason})
	}
	if s.disconnect != nil {
		s.disconnect(ctx, reason)
	}
}

// Reason returns why the session should end in the given state, or "" when
// the agent is available or the session is already gone.
func Reason(st state.AgentState) string {
	switch {
	case st.Available(), st == state.AgentDisconnected:
		return ""
	case st == state.AgentConnecting:
		return ReasonNotJoined
	default:
		return ReasonNotInitialized
	}
}
