package chat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeOrdersTranscriptionBeforeLaterChat(t *testing.T) {
	messages := []ChatMessage{{ID: "a", Timestamp: 100, Message: "hi"}}
	segments := []TranscriptionSegment{{ID: "seg-1", Timestamp: 50, Text: "hello", ParticipantIdentity: "agent"}}

	got := Merge(messages, segments, Participants{})

	require.Len(t, got, 2)
	require.Equal(t, "seg-1", got[0].ID)
	require.Equal(t, int64(50), got[0].Timestamp)
	require.Equal(t, "a", got[1].ID)
}

func TestMergeEmptyInputs(t *testing.T) {
	got := Merge(nil, nil, Participants{})
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestMergeResolvesParticipants(t *testing.T) {
	room := Participants{
		Local:  &Participant{Identity: "me", Name: "Alice"},
		Remote: []Participant{{Identity: "agent", Name: "Vyna", IsAgent: true}},
	}
	segments := []TranscriptionSegment{
		{ID: "1", Timestamp: 1, ParticipantIdentity: "me"},
		{ID: "2", Timestamp: 2, ParticipantIdentity: "agent"},
		{ID: "3", Timestamp: 3, ParticipantIdentity: "ghost"},
	}

	got := Merge(nil, segments, room)

	require.Equal(t, OriginLocal, got[0].Origin)
	require.Equal(t, "Alice", got[0].From.Name)
	require.Equal(t, OriginRemote, got[1].Origin)
	require.Equal(t, "Vyna", got[1].SenderName)
	require.True(t, got[1].From.IsAgent)
	require.Nil(t, got[2].From)
	require.Empty(t, got[2].SenderName)
}

func TestMergeIsStableOnTies(t *testing.T) {
	messages := []ChatMessage{
		{ID: "c1", Timestamp: 10},
		{ID: "c2", Timestamp: 10},
	}
	segments := []TranscriptionSegment{
		{ID: "s1", Timestamp: 10},
		{ID: "s2", Timestamp: 5},
		{ID: "s3", Timestamp: 10},
	}

	got := Merge(messages, segments, Participants{})

	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	require.Equal(t, []string{"s2", "s1", "s3", "c1", "c2"}, ids)
}

func TestMergeSortedAndStableForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		messages := make([]ChatMessage, rng.Intn(20))
		for i := range messages {
			messages[i] = ChatMessage{ID: "m" + string(rune('a'+i)), Timestamp: int64(rng.Intn(8))}
		}
		segments := make([]TranscriptionSegment, rng.Intn(20))
		for i := range segments {
			segments[i] = TranscriptionSegment{ID: "s" + string(rune('a'+i)), Timestamp: int64(rng.Intn(8))}
		}

		// Encounter order: segments first, then messages.
		position := make(map[string]int)
		for i, s := range segments {
			position[s.ID] = i
		}
		for i, m := range messages {
			position[m.ID] = len(segments) + i
		}

		got := Merge(messages, segments, Participants{})
		require.Len(t, got, len(messages)+len(segments))
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			require.LessOrEqual(t, prev.Timestamp, cur.Timestamp)
			if prev.Timestamp == cur.Timestamp {
				require.Less(t, position[prev.ID], position[cur.ID], "tie order broken in round %d", round)
			}
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	messages := []ChatMessage{{ID: "b", Timestamp: 2}, {ID: "a", Timestamp: 1}}
	Merge(messages, nil, Participants{})
	require.Equal(t, "b", messages[0].ID)
}
