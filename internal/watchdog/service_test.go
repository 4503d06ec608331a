package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReason(t *testing.T) {
	tests := []struct {
		state state.AgentState
		want  string
	}{
		{state.AgentDisconnected, ""},
		{state.AgentConnecting, ReasonNotJoined},
		{state.AgentInitializing, ReasonNotInitialized},
		{state.AgentState("warming-up"), ReasonNotInitialized},
		{state.AgentListening, ""},
		{state.AgentThinking, ""},
		{state.AgentSpeaking, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			require.Equal(t, tt.want, Reason(tt.state))
		})
	}
}

func TestNewServiceDefaultTimeout(t *testing.T) {
	s := NewService(0, nil, nil)
	require.Equal(t, DefaultTimeout, s.timeout)
}

type run struct {
	svc     *Service
	bus     *bus.EventBus
	reasons chan string
	stop    func()
}

func startService(t *testing.T, timeout time.Duration) *run {
	t.Helper()
	r := &run{bus: bus.NewEventBus(), reasons: make(chan string, 4)}
	r.svc = NewService(timeout, r.bus, func(_ context.Context, reason string) {
		r.reasons <- reason
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.svc.Run(ctx)
		close(done)
	}()
	r.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(r.stop)
	return r
}

func TestTimeoutWhileConnecting(t *testing.T) {
	r := startService(t, 20*time.Millisecond)
	r.svc.Observe(state.AgentConnecting)

	select {
	case reason := <-r.reasons:
		require.Equal(t, ReasonNotJoined, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire")
	}

	a := <-r.bus.Alerts
	require.Equal(t, bus.AlertTimeout, a.Kind)
	require.Equal(t, "Session ended", a.Title)
	require.Equal(t, ReasonNotJoined, a.Description)
	require.False(t, a.Blocking())
}

func TestTimeoutWhileInitializing(t *testing.T) {
	r := startService(t, 20*time.Millisecond)
	r.svc.Observe(state.AgentConnecting)
	r.svc.Observe(state.AgentInitializing)

	select {
	case reason := <-r.reasons:
		require.Equal(t, ReasonNotInitialized, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestAvailableAgentDoesNotFire(t *testing.T) {
	r := startService(t, 20*time.Millisecond)
	r.svc.Observe(state.AgentConnecting)
	r.svc.Observe(state.AgentListening)

	select {
	case reason := <-r.reasons:
		t.Fatalf("unexpected timeout: %s", reason)
	case <-time.After(100 * time.Millisecond):
	}
	require.Empty(t, r.bus.Alerts)
}

func TestDisconnectDisarms(t *testing.T) {
	r := startService(t, 30*time.Millisecond)
	r.svc.Observe(state.AgentConnecting)
	r.svc.Observe(state.AgentDisconnected)

	select {
	case reason := <-r.reasons:
		t.Fatalf("unexpected timeout: %s", reason)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStateChangeRearms(t *testing.T) {
	r := startService(t, 80*time.Millisecond)
	start := time.Now()
	r.svc.Observe(state.AgentConnecting)
	time.Sleep(50 * time.Millisecond)
	r.svc.Observe(state.AgentInitializing)

	select {
	case reason := <-r.reasons:
		require.Equal(t, ReasonNotInitialized, reason)
		require.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not fire")
	}
}

func TestObserveKeepsLatest(t *testing.T) {
	s := NewService(time.Second, nil, nil)
	s.Observe(state.AgentConnecting)
	s.Observe(state.AgentInitializing)
	s.Observe(state.AgentSpeaking)
	require.Equal(t, state.AgentSpeaking, <-s.states)
}
