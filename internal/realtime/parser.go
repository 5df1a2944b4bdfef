package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/jpcarvalho/lume/internal/remote"
)

// Event names carried in the envelope.
const (
	EventNewMessage   = "message.new"
	EventNewMatch     = "match.new"
	EventMatchUpdated = "match.updated"
)

// Envelope is the JSON frame delivered on every subscription channel.
type Envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MessageEvent is the payload of a new-message push.
type MessageEvent struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
}

// MatchEvent is the payload of new-match and match-update pushes. ChatID
// is set once the match has a conversation.
type MatchEvent struct {
	remote.Match
	ChatID string `json:"chat_id,omitempty"`
}

// ParseEvent decodes an envelope's payload into its typed event.
// Unknown event names return an error; handlers log and drop them.
func ParseEvent(env Envelope) (any, error) {
	switch env.Event {
	case EventNewMessage:
		var evt MessageEvent
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if evt.ID == "" || evt.ChatID == "" {
			return nil, fmt.Errorf("%s: missing message or chat id", env.Event)
		}
		return evt, nil
	case EventNewMatch, EventMatchUpdated:
		var evt MatchEvent
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if evt.Match.ID == "" {
			return nil, fmt.Errorf("%s: missing match id", env.Event)
		}
		return evt, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}
