package chat

import "sort"

// Participants is the view of the session membership used to attribute
// transcription segments.
type Participants struct {
	Local  *Participant
	Remote []Participant
}

// Resolve returns the participant with the given identity, checking the local
// participant first. It returns nil when nobody matches.
func (p Participants) Resolve(identity string) *Participant {
	if p.Local != nil && p.Local.Identity == identity {
		local := *p.Local
		return &local
	}
	for _, r := range p.Remote {
		if r.Identity == identity {
			remote := r
			return &remote
		}
	}
	return nil
}

// FromSegment maps a transcription segment into the chat message shape.
func FromSegment(seg TranscriptionSegment, room Participants) ChatMessage {
	msg := ChatMessage{
		ID:        seg.ID,
		Timestamp: seg.Timestamp,
		Message:   seg.Text,
		Origin:    OriginRemote,
		From:      room.Resolve(seg.ParticipantIdentity),
	}
	if room.Local != nil && room.Local.Identity == seg.ParticipantIdentity {
		msg.Origin = OriginLocal
	}
	if msg.From != nil {
		msg.SenderName = msg.From.Name
	}
	return msg
}

// Merge combines chat messages and transcription segments into one list
// ordered by timestamp. Mapped segments are placed before chat messages and
// the sort is stable, so equal timestamps keep that encounter order.
//
// Merge is a pure function of its inputs and never returns nil.
func Merge(messages []ChatMessage, segments []TranscriptionSegment, room Participants) []ChatMessage {
	merged := make([]ChatMessage, 0, len(messages)+len(segments))
	for _, seg := range segments {
		merged = append(merged, FromSegment(seg, room))
	}
	merged = append(merged, messages...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
