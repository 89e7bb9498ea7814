package core

import (
	"encoding/json"
	"fmt"
)

// Part represents a polymorphic segment of role-based content. Concrete
// part types implement the unexported isPart marker enabling a closed set:
// text and structured data, nothing open-ended.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g. a JSON object map).
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// partEnvelope is the tagged wire form for a Part.
type partEnvelope struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MarshalParts encodes an ordered part slice into its tagged JSON form.
func MarshalParts(parts []Part) ([]byte, error) {
	envelopes := make([]partEnvelope, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case TextPart:
			envelopes = append(envelopes, partEnvelope{Kind: "text", Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			envelopes = append(envelopes, partEnvelope{Kind: "data", Data: v.Data, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unknown part type %T", p)
		}
	}
	return json.Marshal(envelopes)
}

// UnmarshalParts decodes the tagged JSON form back into typed parts. An
// unrecognized kind tag is rejected, never coerced.
func UnmarshalParts(raw []byte) ([]Part, error) {
	var envelopes []partEnvelope
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(envelopes))
	for _, env := range envelopes {
		switch env.Kind {
		case "text":
			parts = append(parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case "data":
			parts = append(parts, DataPart{Data: env.Data, Metadata: env.Metadata})
		default:
			return nil, NewError(KindInvalidInput, "part.unmarshal", "unknown part kind "+env.Kind)
		}
	}
	return parts, nil
}
