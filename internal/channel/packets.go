package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joebot/vyna/internal/chat"
)

const (
	// ChatTopic is the data packet topic chat messages travel on.
	ChatTopic = "lk-chat-topic"
	// TranscriptionTopic is the text stream topic agents publish speech on.
	TranscriptionTopic = "lk.transcription"
)

// chatPacket is the wire form of a chat message.
type chatPacket struct {
	ID            string `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Message       string `json:"message"`
	EditTimestamp int64  `json:"editTimestamp,omitempty"`
	Ignore        bool   `json:"ignore,omitempty"`
}

var errIgnored = errors.New("packet marked ignore")

// EncodeChat builds the data packet payload for msg.
func EncodeChat(msg chat.ChatMessage) ([]byte, error) {
	return json.Marshal(chatPacket{
		ID:            msg.ID,
		Timestamp:     msg.Timestamp,
		Message:       msg.Message,
		EditTimestamp: msg.EditTimestamp,
	})
}

// DecodeChat parses a chat data packet sent by sender.
func DecodeChat(payload []byte, sender chat.Participant) (chat.ChatMessage, error) {
	var p chatPacket
	if err := json.Unmarshal(payload, &p); err != nil {
		return chat.ChatMessage{}, fmt.Errorf("decode chat packet: %w", err)
	}
	if p.Ignore {
		return chat.ChatMessage{}, errIgnored
	}
	if p.ID == "" {
		return chat.ChatMessage{}, errors.New("decode chat packet: missing id")
	}

	name := sender.Name
	if name == "" {
		name = sender.Identity
	}
	return chat.ChatMessage{
		ID:            p.ID,
		Timestamp:     p.Timestamp,
		Message:       p.Message,
		Origin:        chat.OriginRemote,
		SenderName:    name,
		EditTimestamp: p.EditTimestamp,
		From:          &sender,
	}, nil
}

// Segment is one transcription update as reported by the transport.
type Segment struct {
	ID    string
	Text  string
	Final bool
}

// Segments converts transport segments for identity, stamped with the time
// they were seen.
func Segments(identity string, segs []Segment, seen time.Time) []chat.TranscriptionSegment {
	out := make([]chat.TranscriptionSegment, 0, len(segs))
	for _, s := range segs {
		if s.ID == "" {
			continue
		}
		out = append(out, chat.TranscriptionSegment{
			ID:                  s.ID,
			ParticipantIdentity: identity,
			Text:                s.Text,
			Timestamp:           seen.UnixMilli(),
			Final:               s.Final,
		})
	}
	return out
}

// StreamInfo describes a transcription text stream as announced by its sender.
type StreamInfo struct {
	ID        string
	Timestamp int64 // ms, sender clock
}

// StreamSegment maps the text received so far on a transcription stream.
func StreamSegment(info StreamInfo, identity, text string, final bool) chat.TranscriptionSegment {
	return chat.TranscriptionSegment{
		ID:                  info.ID,
		ParticipantIdentity: identity,
		Text:                text,
		Timestamp:           info.Timestamp,
		Final:               final,
	}
}

// wordReader is satisfied by the transport's text stream reader.
type wordReader interface {
	ReadString(delim byte) (string, error)
}

// readStream emits the growing text of a transcription stream word by word,
// then once more marked final when the sender closes it.
func readStream(r wordReader, info StreamInfo, identity string, emit func(chat.TranscriptionSegment)) error {
	if info.ID == "" {
		return errors.New("transcription stream without id")
	}
	var text strings.Builder
	for {
		part, err := r.ReadString(' ')
		text.WriteString(part)
		if errors.Is(err, io.EOF) {
			emit(StreamSegment(info, identity, text.String(), true))
			return nil
		}
		if err != nil {
			return fmt.Errorf("read transcription stream %s: %w", info.ID, err)
		}
		if part != "" {
			emit(StreamSegment(info, identity, text.String(), false))
		}
	}
}
