package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
)

// forwarder turns transport callbacks into session events. Callbacks arrive on
// transport goroutines; publishing blocks until the loop has room or ctx ends.
type forwarder struct {
	ctx  context.Context
	sink Sink
	now  func() time.Time

	// streaming is set once a transcription text stream arrives; the
	// segment callback is ignored from then on.
	streaming atomic.Bool

	endOnce sync.Once
	ended   chan struct{}
}

func newForwarder(ctx context.Context, sink Sink) *forwarder {
	return &forwarder{
		ctx:   ctx,
		sink:  sink,
		now:   time.Now,
		ended: make(chan struct{}),
	}
}

func (f *forwarder) publish(ev bus.Event) {
	if err := f.sink.Publish(f.ctx, ev); err != nil {
		slog.Warn("livekit: event dropped", "kind", ev.Kind(), "err", err)
	}
}

func (f *forwarder) connected(local chat.Participant) {
	f.publish(bus.Connected{Local: local})
}

func (f *forwarder) dataPacket(topic string, payload []byte, sender chat.Participant) {
	if topic != ChatTopic {
		slog.Debug("livekit: ignoring data packet", "topic", topic, "from", sender.Identity)
		return
	}
	msg, err := DecodeChat(payload, sender)
	if err != nil {
		if !errors.Is(err, errIgnored) {
			slog.Warn("livekit: bad chat packet", "from", sender.Identity, "err", err)
		}
		return
	}
	f.publish(bus.ChatReceived{Message: msg})
}

func (f *forwarder) transcription(identity string, segs []Segment) {
	if f.streaming.Load() {
		return
	}
	converted := Segments(identity, segs, f.now())
	if len(converted) == 0 {
		return
	}
	f.publish(bus.TranscriptionReceived{Segments: converted})
}

func (f *forwarder) transcriptionStream(r wordReader, info StreamInfo, identity string) {
	f.streaming.Store(true)
	err := readStream(r, info, identity, func(seg chat.TranscriptionSegment) {
		f.publish(bus.TranscriptionReceived{Segments: []chat.TranscriptionSegment{seg}})
	})
	if err != nil {
		slog.Warn("livekit: transcription stream", "from", identity, "err", err)
	}
}

func (f *forwarder) joined(p chat.Participant, attrs map[string]string) {
	f.publish(bus.ParticipantJoined{Participant: p, Attributes: attrs})
}

func (f *forwarder) left(identity string) {
	f.publish(bus.ParticipantLeft{Identity: identity})
}

func (f *forwarder) attributes(identity string, changed map[string]string) {
	if len(changed) == 0 {
		return
	}
	f.publish(bus.AttributesChanged{Identity: identity, Changed: changed})
}

// disconnected reports the end of the session once, whichever side ended it.
func (f *forwarder) disconnected(reason string) {
	f.endOnce.Do(func() {
		close(f.ended)
		// The run context may already be gone; the loop still needs to clear.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(f.ctx), time.Second)
		defer cancel()
		if err := f.sink.Publish(ctx, bus.Disconnected{Reason: reason}); err != nil {
			slog.Debug("livekit: disconnect event dropped", "err", err)
		}
	})
}
