package chat

import "time"

// Origin tells whether a message was produced by this client or by a peer.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Participant is a member of the real-time session.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	IsAgent  bool   `json:"isAgent,omitempty"`
}

// ChatMessage is a single entry in the visible transcript.
type ChatMessage struct {
	ID            string       `json:"id"`
	Timestamp     int64        `json:"timestamp"` // ms since epoch
	Message       string       `json:"message"`
	Origin        Origin       `json:"origin"`
	SenderName    string       `json:"senderName,omitempty"`
	EditTimestamp int64        `json:"editTimestamp,omitempty"`
	From          *Participant `json:"from,omitempty"`
}

// Edited reports whether the message was changed after it was first received.
func (m ChatMessage) Edited() bool {
	return m.EditTimestamp != 0
}

// Time returns the message timestamp as a time.Time.
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// TranscriptionSegment is an incremental speech-to-text fragment.
//
// Interim results for the same segment arrive with the same ID; the text is
// replaced while the first-seen Timestamp is kept.
type TranscriptionSegment struct {
	ID                  string `json:"id"`
	ParticipantIdentity string `json:"participantIdentity"`
	Text                string `json:"text"`
	Timestamp           int64  `json:"timestamp"`
	Final               bool   `json:"final"`
}

// Reply is one agent response returned by the chat backend, queued for playback.
type Reply struct {
	Text             string `json:"text,omitempty"`
	Audio            string `json:"audio,omitempty"`
	Lipsync          any    `json:"lipsync,omitempty"`
	FacialExpression string `json:"facialExpression,omitempty"`
	Animation        string `json:"animation,omitempty"`
}
