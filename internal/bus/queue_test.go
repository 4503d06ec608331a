package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/rpc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunConsumesInOrder(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	var got []string
	done := make(chan struct{})
	go func() {
		b.Run(ctx, func(_ context.Context, ev Event) {
			got = append(got, ev.(ChatReceived).Message.ID)
			if len(got) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, b.Publish(context.Background(), ChatReceived{Message: chat.ChatMessage{ID: id}}))
	}
	<-done
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPublishAfterStopReturnsErrClosed(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Run(ctx, func(context.Context, Event) {})

	<-b.Done()
	err := b.Publish(context.Background(), ReplyPlayed{})
	require.True(t, errors.Is(err, ErrClosed))
}

func TestPublishHonorsContext(t *testing.T) {
	b := &EventBus{Events: make(chan Event), done: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Publish(ctx, ReplyPlayed{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatchAlertsFansOut(t *testing.T) {
	b := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"tui", "log"} {
		name := name
		b.SubscribeAlerts(func(_ context.Context, a Alert) error {
			mu.Lock()
			seen = append(seen, name+":"+a.Title)
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	stopped := make(chan struct{})
	go func() {
		b.DispatchAlerts(ctx)
		close(stopped)
	}()

	b.PublishAlert(Alert{Kind: AlertTimeout, Title: "Session ended"})
	wg.Wait()
	cancel()
	<-stopped

	require.ElementsMatch(t, []string{"tui:Session ended", "log:Session ended"}, seen)
}

func TestAlertBlocking(t *testing.T) {
	require.True(t, Alert{Kind: AlertConnection}.Blocking())
	require.True(t, Alert{Kind: AlertDevice}.Blocking())
	require.False(t, Alert{Kind: AlertTimeout}.Blocking())
}

func TestAlertFor(t *testing.T) {
	a := AlertFor(Connection(errors.New("failed to fetch connection details: 503")))
	require.Equal(t, AlertConnection, a.Kind)
	require.Equal(t, "failed to fetch connection details: 503", a.Description)
	require.True(t, a.Blocking())

	a = AlertFor(fmt.Errorf("%w: microphone busy", ErrDevice))
	require.Equal(t, AlertDevice, a.Kind)
	require.Equal(t, "microphone busy", a.Description)

	a = AlertFor(errors.New("plain"))
	require.Equal(t, AlertConnection, a.Kind)
	require.Equal(t, "plain", a.Description)
}

func TestRPCInvokedClaimOnce(t *testing.T) {
	ev := NewRPCInvoked(rpc.Invocation{Method: "greet"})
	require.Equal(t, 1, cap(ev.Reply))

	copied := ev
	require.True(t, ev.Claim())
	require.False(t, copied.Claim(), "copies share the claim")

	var legacy RPCInvoked
	require.True(t, legacy.Claim())
}
