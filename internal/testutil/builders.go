package testutil

import (
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/group"
)

// CardBuilder assembles agent cards with sensible defaults.
type CardBuilder struct {
	card core.AgentCard
}

// NewCard starts a card for the given agent id.
func NewCard(id string) *CardBuilder {
	return &CardBuilder{card: core.AgentCard{
		ID:       id,
		Name:     id,
		Endpoint: "loop://" + id,
	}}
}

// WithSkills sets the declared skill tags.
func (b *CardBuilder) WithSkills(skills ...string) *CardBuilder {
	b.card.Skills = skills
	return b
}

// WithEndpoint overrides the reachable endpoint.
func (b *CardBuilder) WithEndpoint(endpoint string) *CardBuilder {
	b.card.Endpoint = endpoint
	return b
}

// WithStreaming flags streaming capability.
func (b *CardBuilder) WithStreaming() *CardBuilder {
	b.card.Capabilities.Streaming = true
	return b
}

// Build returns the assembled card.
func (b *CardBuilder) Build() core.AgentCard { return b.card }

// Participants builds a participant list from agent ids, using the id as
// the role label.
func Participants(agentIDs ...string) []group.Participant {
	out := make([]group.Participant, 0, len(agentIDs))
	for _, id := range agentIDs {
		out = append(out, group.Participant{AgentID: id, Role: id})
	}
	return out
}

// VoteMessage builds a response message carrying votes per category.
func VoteMessage(votes map[string]string) core.Message {
	payload := make(map[string]any, len(votes))
	for category, option := range votes {
		payload[category] = option
	}
	return core.NewDataMessage("agent", map[string]any{"votes": payload})
}
