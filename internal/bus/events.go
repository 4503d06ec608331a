package bus

import (
	"sync/atomic"

	"github.com/joebot/vyna/internal/chat"
	"github.com/joebot/vyna/internal/rpc"
)

// Event is anything delivered by the real-time session or the UI that may
// change shared state. Events are applied in arrival order by one consumer.
type Event interface {
	Kind() string
}

// ChatReceived carries a complete chat message (new or edited).
type ChatReceived struct {
	Message chat.ChatMessage
}

// TranscriptionReceived carries one or more transcription segment updates.
type TranscriptionReceived struct {
	Segments []chat.TranscriptionSegment
}

// RPCInvoked is a remote command awaiting a result on Reply.
// Reply must be buffered so the consumer never blocks on a caller that gave up.
type RPCInvoked struct {
	Invocation rpc.Invocation
	Reply      chan string

	claimed *atomic.Bool
}

// NewRPCInvoked creates an invocation event with a buffered reply channel.
func NewRPCInvoked(inv rpc.Invocation) RPCInvoked {
	return RPCInvoked{
		Invocation: inv,
		Reply:      make(chan string, 1),
		claimed:    new(atomic.Bool),
	}
}

// Claim takes ownership of the invocation. The consumer claims before
// dispatching and a caller that stops waiting claims before reporting a
// failure; only the first claim succeeds.
func (e RPCInvoked) Claim() bool {
	if e.claimed == nil {
		return true
	}
	return e.claimed.CompareAndSwap(false, true)
}

// ParticipantJoined announces a remote participant.
type ParticipantJoined struct {
	Participant chat.Participant
	Attributes  map[string]string
}

// ParticipantLeft announces a remote participant leaving.
type ParticipantLeft struct {
	Identity string
}

// AttributesChanged carries participant attribute updates.
type AttributesChanged struct {
	Identity string
	Changed  map[string]string
}

// Connected marks a successful join.
type Connected struct {
	Local chat.Participant
}

// Disconnected marks the end of the session.
type Disconnected struct {
	Reason string
}

// RepliesReceived carries the result of a chat backend round trip.
type RepliesReceived struct {
	Replies []chat.Reply
}

// ReplyPlayed marks the head reply as played.
type ReplyPlayed struct{}

// LoadingChanged toggles the round-trip indicator.
type LoadingChanged struct {
	Loading bool
}

// CameraZoomChanged toggles the avatar camera zoom.
type CameraZoomChanged struct {
	Zoomed bool
}

// IllustrationClosed is the local close action on the overlay.
type IllustrationClosed struct{}

func (ChatReceived) Kind() string          { return "chat" }
func (TranscriptionReceived) Kind() string { return "transcription" }
func (RPCInvoked) Kind() string            { return "rpc" }
func (ParticipantJoined) Kind() string     { return "participant_joined" }
func (ParticipantLeft) Kind() string       { return "participant_left" }
func (AttributesChanged) Kind() string     { return "attributes" }
func (Connected) Kind() string             { return "connected" }
func (Disconnected) Kind() string          { return "disconnected" }
func (RepliesReceived) Kind() string       { return "replies" }
func (ReplyPlayed) Kind() string           { return "reply_played" }
func (LoadingChanged) Kind() string        { return "loading" }
func (CameraZoomChanged) Kind() string     { return "camera_zoom" }
func (IllustrationClosed) Kind() string    { return "illustration_closed" }

// AlertKind classifies user-facing notifications.
type AlertKind string

const (
	AlertConnection AlertKind = "connection" // blocking
	AlertDevice     AlertKind = "device"     // blocking
	AlertTimeout    AlertKind = "timeout"    // dismissible
)

// Alert is a notification shown to the user.
type Alert struct {
	Kind        AlertKind
	Title       string
	Description string
}

// Blocking reports whether the alert must be acknowledged by the user.
func (a Alert) Blocking() bool {
	return a.Kind == AlertConnection || a.Kind == AlertDevice
}
