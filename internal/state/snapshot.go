package state

import "github.com/joebot/vyna/internal/chat"

// Snapshot is a consistent, deep-copied view of the store.
type Snapshot struct {
	Revision     uint64             `json:"revision"`
	Illustration Illustration       `json:"illustration"`
	Components   []Component        `json:"components"`
	Transcript   []chat.ChatMessage `json:"transcript"`
	Replies      []chat.Reply       `json:"replies"`
	Loading      bool               `json:"loading"`
	CameraZoomed bool               `json:"cameraZoomed"`
	Connected    bool               `json:"connected"`
	AgentState   AgentState         `json:"agentState"`
	Participants chat.Participants  `json:"participants"`

	// RepliesPlayed counts pops of the playback queue.
	RepliesPlayed uint64 `json:"repliesPlayed"`
}

// CurrentReply returns the head of the playback queue.
func (s Snapshot) CurrentReply() (chat.Reply, bool) {
	if len(s.Replies) == 0 {
		return chat.Reply{}, false
	}
	return s.Replies[0], true
}

// Snapshot captures the whole store under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room := s.participantsLocked()
	return Snapshot{
		Revision:      s.revision,
		Illustration:  copyIllustration(s.illustration),
		Components:    append([]Component(nil), s.components...),
		Transcript:    chat.Merge(s.messages, s.segments, room),
		Replies:       append([]chat.Reply(nil), s.replies...),
		RepliesPlayed: s.played,
		Loading:       s.loading,
		CameraZoomed:  s.cameraZoomed,
		Connected:     s.connected,
		AgentState:    s.agentState,
		Participants:  room,
	}
}
