package core

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MessageKind distinguishes plain messages from task directives.
type MessageKind string

const (
	// KindMessage is a plain structured message.
	KindMessage MessageKind = "message"
	// KindTaskDirective instructs the receiver to perform work tracked by a
	// Task on the sending channel.
	KindTaskDirective MessageKind = "task"
)

// Message is the unit of exchange between two agents. Identifiers are unique
// within a channel; Sequence is a monotonically increasing per-channel
// logical number used for causal ordering, not wall-clock ordering.
type Message struct {
	ID       string      `json:"id"`
	Role     string      `json:"role"`
	Kind     MessageKind `json:"kind"`
	Parts    []Part      `json:"-"`
	Sequence int64       `json:"sequence,omitempty"`
}

// NewID generates a new unique identifier for messages, tasks and
// correlation keys.
func NewID() string { return uuid.NewString() }

// NewTextMessage builds a plain message with a single text part.
func NewTextMessage(role, text string) Message {
	return Message{ID: NewID(), Role: role, Kind: KindMessage, Parts: []Part{TextPart{Text: text}}}
}

// NewDataMessage builds a plain message carrying a structured data part.
func NewDataMessage(role string, data map[string]any) Message {
	return Message{ID: NewID(), Role: role, Kind: KindMessage, Parts: []Part{DataPart{Data: data}}}
}

// NewTaskDirective builds a task-directive message with a single text part.
func NewTaskDirective(role, text string) Message {
	return Message{ID: NewID(), Role: role, Kind: KindTaskDirective, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the text of all text parts in order. Structured parts
// are skipped; the channel never interprets their content.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// messageWire is the JSON form of a Message with tagged parts.
type messageWire struct {
	ID       string          `json:"id"`
	Role     string          `json:"role"`
	Kind     MessageKind     `json:"kind"`
	Parts    json.RawMessage `json:"parts"`
	Sequence int64           `json:"sequence,omitempty"`
}

// MarshalJSON encodes the message with its parts in tagged form.
func (m Message) MarshalJSON() ([]byte, error) {
	parts, err := MarshalParts(m.Parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageWire{ID: m.ID, Role: m.Role, Kind: m.Kind, Parts: parts, Sequence: m.Sequence})
}

// UnmarshalJSON decodes the tagged wire form.
func (m *Message) UnmarshalJSON(raw []byte) error {
	var wire messageWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	var parts []Part
	if len(wire.Parts) > 0 {
		decoded, err := UnmarshalParts(wire.Parts)
		if err != nil {
			return err
		}
		parts = decoded
	}
	*m = Message{ID: wire.ID, Role: wire.Role, Kind: wire.Kind, Parts: parts, Sequence: wire.Sequence}
	return nil
}
