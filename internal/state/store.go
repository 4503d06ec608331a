package state

import (
	"sync"

	"github.com/joebot/vyna/internal/chat"
)

// AgentState is the lifecycle state of the remote voice agent.
type AgentState string

const (
	AgentDisconnected AgentState = "disconnected"
	AgentConnecting   AgentState = "connecting"
	AgentInitializing AgentState = "initializing"
	AgentListening    AgentState = "listening"
	AgentThinking     AgentState = "thinking"
	AgentSpeaking     AgentState = "speaking"
)

// Available reports whether the agent has finished initializing.
func (s AgentState) Available() bool {
	return s == AgentListening || s == AgentThinking || s == AgentSpeaking
}

// Illustration is the remotely controlled image overlay.
type Illustration struct {
	Visible  bool    `json:"visible"`
	ImageURL *string `json:"imageUrl"`
}

// Component is a UI fragment toggled by the agent.
type Component struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Shown   bool   `json:"shown"`
}

// Store is the single shared UI state container. All mutations go through
// its methods; each one is applied atomically and wakes subscribers.
type Store struct {
	mu sync.RWMutex

	revision     uint64
	illustration Illustration
	components   []Component
	messages     []chat.ChatMessage
	segments     []chat.TranscriptionSegment
	replies      []chat.Reply
	played       uint64
	loading      bool
	cameraZoomed bool
	connected    bool
	agentState   AgentState
	local        *chat.Participant
	remote       []chat.Participant

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// NewStore creates a store with the initial defaults.
func NewStore() *Store {
	return &Store{
		cameraZoomed: true,
		agentState:   AgentDisconnected,
		subs:         make(map[int]chan struct{}),
	}
}

// Subscribe returns a channel that receives a value after every mutation.
// Notifications coalesce: a slow reader sees at most one pending signal.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// update applies fn under the write lock and notifies subscribers.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.revision++
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// --- illustration ---

// Illustration returns the current overlay state.
func (s *Store) Illustration() Illustration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyIllustration(s.illustration)
}

// ShowIllustration makes the overlay visible with the given image.
// A nil url clears the image.
func (s *Store) ShowIllustration(url *string) {
	s.update(func() {
		s.illustration = Illustration{Visible: true, ImageURL: copyString(url)}
	})
}

// HideIllustration hides the overlay and keeps the last image url.
func (s *Store) HideIllustration() {
	s.update(func() {
		s.illustration.Visible = false
	})
}

// UpdateIllustration replaces the overlay state wholesale.
func (s *Store) UpdateIllustration(ill Illustration) {
	s.update(func() {
		s.illustration = copyIllustration(ill)
	})
}

// --- components ---

// UpsertComponent replaces the component with the same id or appends it.
func (s *Store) UpsertComponent(c Component) {
	s.update(func() {
		for i := range s.components {
			if s.components[i].ID == c.ID {
				s.components[i] = c
				return
			}
		}
		s.components = append(s.components, c)
	})
}

// Components returns a copy of the visible UI fragments.
func (s *Store) Components() []Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Component(nil), s.components...)
}

// --- transcript ---

// UpsertChat appends a chat message, or applies it as an edit when a message
// with the same id already exists.
func (s *Store) UpsertChat(msg chat.ChatMessage) {
	s.update(func() {
		for i := range s.messages {
			if s.messages[i].ID != msg.ID {
				continue
			}
			s.messages[i].Message = msg.Message
			s.messages[i].EditTimestamp = msg.EditTimestamp
			if s.messages[i].EditTimestamp == 0 {
				s.messages[i].EditTimestamp = msg.Timestamp
			}
			return
		}
		s.messages = append(s.messages, msg)
	})
}

// UpsertSegment records a transcription segment. Updates for a known segment
// replace its text and finality but keep its original timestamp.
func (s *Store) UpsertSegment(seg chat.TranscriptionSegment) {
	s.update(func() {
		for i := range s.segments {
			if s.segments[i].ID != seg.ID {
				continue
			}
			s.segments[i].Text = seg.Text
			s.segments[i].Final = seg.Final
			return
		}
		s.segments = append(s.segments, seg)
	})
}

// Transcript returns the merged, time-ordered conversation.
func (s *Store) Transcript() []chat.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.Merge(s.messages, s.segments, s.participantsLocked())
}

// --- reply queue ---

// EnqueueReplies appends agent replies to the playback queue.
func (s *Store) EnqueueReplies(replies []chat.Reply) {
	if len(replies) == 0 {
		return
	}
	s.update(func() {
		s.replies = append(s.replies, replies...)
	})
}

// CurrentReply returns the reply being played, if any.
func (s *Store) CurrentReply() (chat.Reply, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.replies) == 0 {
		return chat.Reply{}, false
	}
	return s.replies[0], true
}

// ReplyPlayed pops the head of the playback queue.
func (s *Store) ReplyPlayed() {
	s.update(func() {
		if len(s.replies) > 0 {
			s.replies = s.replies[1:]
			s.played++
		}
	})
}

// --- flags ---

// SetLoading sets the chat round-trip indicator.
func (s *Store) SetLoading(v bool) {
	s.update(func() { s.loading = v })
}

// SetCameraZoomed sets the avatar camera zoom flag.
func (s *Store) SetCameraZoomed(v bool) {
	s.update(func() { s.cameraZoomed = v })
}

// SetConnected marks the real-time session as joined or left.
// Leaving resets the agent state to disconnected.
func (s *Store) SetConnected(v bool) {
	s.update(func() {
		s.connected = v
		switch {
		case !v:
			s.agentState = AgentDisconnected
		case s.agentState == AgentDisconnected:
			s.agentState = AgentConnecting
		}
	})
}

// Connected reports whether the real-time session is joined.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SetAgentState records the agent state reported by the session.
func (s *Store) SetAgentState(st AgentState) {
	s.update(func() { s.agentState = st })
}

// AgentState returns the current agent state.
func (s *Store) AgentState() AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentState
}

// --- participants ---

// SetLocalParticipant records the identity this client joined with.
func (s *Store) SetLocalParticipant(p chat.Participant) {
	s.update(func() { s.local = &p })
}

// AddRemote records a remote participant, replacing any entry with the same identity.
func (s *Store) AddRemote(p chat.Participant) {
	s.update(func() {
		for i := range s.remote {
			if s.remote[i].Identity == p.Identity {
				s.remote[i] = p
				return
			}
		}
		s.remote = append(s.remote, p)
	})
}

// RemoveRemote drops a remote participant.
func (s *Store) RemoveRemote(identity string) {
	s.update(func() {
		for i := range s.remote {
			if s.remote[i].Identity == identity {
				s.remote = append(s.remote[:i], s.remote[i+1:]...)
				return
			}
		}
	})
}

// Participants returns the membership view used for attribution.
func (s *Store) Participants() chat.Participants {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.participantsLocked()
}

func (s *Store) participantsLocked() chat.Participants {
	var local *chat.Participant
	if s.local != nil {
		l := *s.local
		local = &l
	}
	return chat.Participants{Local: local, Remote: append([]chat.Participant(nil), s.remote...)}
}

// Clear drops all session-scoped data: transcript, replies, components and
// participants. The illustration and camera flag survive until process exit.
func (s *Store) Clear() {
	s.update(func() {
		s.messages = nil
		s.segments = nil
		s.replies = nil
		s.components = nil
		s.remote = nil
		s.local = nil
		s.loading = false
	})
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyIllustration(i Illustration) Illustration {
	return Illustration{Visible: i.Visible, ImageURL: copyString(i.ImageURL)}
}
