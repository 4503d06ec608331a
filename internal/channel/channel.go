package channel

import (
	"context"

	"github.com/joebot/vyna/internal/bus"
)

// Channel is a real-time session transport.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, text string) error
}

// Sink receives the events a transport produces. *session.Loop implements it.
type Sink interface {
	Publish(ctx context.Context, ev bus.Event) error
}
