package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/joebot/vyna/internal/api"
	"github.com/joebot/vyna/internal/bus"
	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/rpc"
	"github.com/joebot/vyna/internal/session"
)

var errNotConnected = errors.New("not connected to a room")

var (
	_ Channel       = (*LiveKit)(nil)
	_ rpc.Registrar = (*LiveKit)(nil)
)

// FetchDetails obtains a server url and participant token.
type FetchDetails func(ctx context.Context) (*api.ConnectionDetails, error)

// LiveKitConfig holds the collaborators of a LiveKit channel.
type LiveKitConfig struct {
	Fetch      FetchDetails
	Sink       Sink
	Bus        *bus.EventBus
	Dispatcher *rpc.Dispatcher
	// Invoke runs remote commands; usually session.Loop.Invoke.
	Invoke rpc.Handler
	// RPCTimeout applies when the caller sends no response timeout.
	RPCTimeout time.Duration
}

// LiveKit joins a LiveKit room and bridges it to the session loop.
type LiveKit struct {
	cfg LiveKitConfig

	mu    sync.Mutex
	room  *lksdk.Room
	local chat.Participant
	fwd   *forwarder
}

// NewLiveKit creates a new LiveKit channel.
func NewLiveKit(cfg LiveKitConfig) *LiveKit {
	return &LiveKit{cfg: cfg}
}

func (l *LiveKit) Name() string { return "livekit" }

// Start joins the room and blocks until the session ends or ctx is
// cancelled. Connection failures raise a blocking alert and are not retried.
func (l *LiveKit) Start(ctx context.Context) error {
	details, err := l.cfg.Fetch(ctx)
	if err != nil {
		return l.fail(err)
	}

	fwd := newForwarder(ctx, l.cfg.Sink)
	cb := lksdk.NewRoomCallback()
	cb.OnDataPacket = func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
		pkt, ok := data.(*lksdk.UserDataPacket)
		if !ok {
			return
		}
		sender := chat.Participant{Identity: params.SenderIdentity}
		if params.Sender != nil {
			sender.Name = params.Sender.Name()
		}
		fwd.dataPacket(pkt.Topic, pkt.Payload, sender)
	}
	cb.OnTranscriptionReceived = func(segs []*lksdk.TranscriptionSegment, p lksdk.Participant, _ lksdk.TrackPublication) {
		if p == nil {
			return
		}
		converted := make([]Segment, 0, len(segs))
		for _, s := range segs {
			converted = append(converted, Segment{ID: s.ID, Text: s.Text, Final: s.Final})
		}
		fwd.transcription(p.Identity(), converted)
	}
	cb.OnAttributesChanged = func(changed map[string]string, p lksdk.Participant) {
		fwd.attributes(p.Identity(), changed)
	}
	cb.OnParticipantConnected = func(p *lksdk.RemoteParticipant) {
		fwd.joined(chat.Participant{Identity: p.Identity(), Name: p.Name()}, p.Attributes())
	}
	cb.OnParticipantDisconnected = func(p *lksdk.RemoteParticipant) {
		fwd.left(p.Identity())
	}
	cb.OnDisconnected = func() {
		slog.Info("livekit: room disconnected")
		l.teardown(false)
		fwd.disconnected("room disconnected")
	}

	slog.Info("livekit: joining room", "url", details.ServerURL, "room", details.RoomName)
	room, err := lksdk.ConnectToRoomWithToken(details.ServerURL, details.ParticipantToken, cb,
		lksdk.WithAutoSubscribe(false))
	if err != nil {
		return l.fail(fmt.Errorf("join room: %w", err))
	}

	local := chat.Participant{
		Identity: room.LocalParticipant.Identity(),
		Name:     room.LocalParticipant.Name(),
	}
	l.mu.Lock()
	l.room = room
	l.local = local
	l.fwd = fwd
	l.mu.Unlock()

	// v2.9.1 returns an error even when it stored the handler.
	if err := room.RegisterTextStreamHandler(TranscriptionTopic, func(r *lksdk.TextStreamReader, identity string) {
		fwd.transcriptionStream(r, StreamInfo{ID: r.Info.Id, Timestamp: r.Info.Timestamp}, identity)
	}); err != nil {
		slog.Debug("livekit: transcription stream handler", "err", err)
	}

	fwd.connected(local)
	for _, p := range room.GetRemoteParticipants() {
		fwd.joined(chat.Participant{Identity: p.Identity(), Name: p.Name()}, p.Attributes())
	}

	if l.cfg.Dispatcher != nil {
		if err := l.cfg.Dispatcher.Mount(l, l.invoke); err != nil {
			slog.Warn("livekit: some remote commands are unavailable", "err", err)
		}
	}
	slog.Info("livekit: joined", "identity", local.Identity, "remotes", len(room.GetRemoteParticipants()))

	select {
	case <-ctx.Done():
		l.Disconnect(ctx, "shutdown")
		return ctx.Err()
	case <-fwd.ended:
		return nil
	}
}

func (l *LiveKit) fail(err error) error {
	err = bus.Connection(err)
	slog.Error("livekit: connection failed", "err", err)
	if l.cfg.Bus != nil {
		l.cfg.Bus.PublishAlert(bus.AlertFor(err))
	}
	return err
}

func (l *LiveKit) invoke(inv rpc.Invocation) string {
	if inv.ResponseTimeout <= 0 {
		inv.ResponseTimeout = l.cfg.RPCTimeout
	}
	if l.cfg.Invoke != nil {
		return l.cfg.Invoke(inv)
	}
	return l.cfg.Dispatcher.Dispatch(inv)
}

// Stop leaves the room.
func (l *LiveKit) Stop() error {
	l.Disconnect(context.Background(), "stopped")
	return nil
}

// Disconnect leaves the room and reports the session end with reason.
// It is safe to call more than once.
func (l *LiveKit) Disconnect(_ context.Context, reason string) {
	l.mu.Lock()
	fwd := l.fwd
	l.mu.Unlock()

	l.teardown(true)
	if fwd != nil {
		fwd.disconnected(reason)
	}
}

// teardown forgets the room; registrations die with it. leave also closes
// the connection.
func (l *LiveKit) teardown(leave bool) {
	l.mu.Lock()
	room := l.room
	l.room = nil
	l.mu.Unlock()
	if room == nil {
		return
	}

	if l.cfg.Dispatcher != nil {
		l.cfg.Dispatcher.Unmount()
	}
	if leave {
		room.Disconnect()
	}
}

// Send publishes a chat message to the room and records it locally.
func (l *LiveKit) Send(ctx context.Context, text string) error {
	l.mu.Lock()
	room, local := l.room, l.local
	l.mu.Unlock()
	if room == nil {
		return bus.Connection(errNotConnected)
	}

	msg := session.LocalMessage(uuid.NewString(), text, local, time.Now())
	payload, err := EncodeChat(msg)
	if err != nil {
		return err
	}
	if err := room.LocalParticipant.PublishDataPacket(lksdk.UserData(payload),
		lksdk.WithDataPublishTopic(ChatTopic),
		lksdk.WithDataPublishReliable(true),
	); err != nil {
		return bus.Connection(fmt.Errorf("publish chat: %w", err))
	}
	return l.cfg.Sink.Publish(ctx, bus.ChatReceived{Message: msg})
}

// Register implements rpc.Registrar on the joined room.
func (l *LiveKit) Register(method string, h rpc.Handler) error {
	l.mu.Lock()
	room := l.room
	l.mu.Unlock()
	if room == nil {
		return errNotConnected
	}
	return room.RegisterRpcMethod(method, func(data lksdk.RpcInvocationData) (string, error) {
		return h(rpc.Invocation{
			RequestID:       data.RequestID,
			Method:          method,
			CallerIdentity:  data.CallerIdentity,
			Payload:         data.Payload,
			ResponseTimeout: data.ResponseTimeout,
		}), nil
	})
}

// Unregister implements rpc.Registrar.
func (l *LiveKit) Unregister(method string) {
	l.mu.Lock()
	room := l.room
	l.mu.Unlock()
	if room != nil {
		room.UnregisterRpcMethod(method)
	}
}
