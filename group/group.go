// Package group implements multi-party coordination sessions: deadline
// bounded broadcast/response rounds over the messaging channel and weighted
// consensus aggregation over the collected votes.
package group

import (
	"time"

	"github.com/ArnBdev/oneagent/core"
)

// Phase is the lifecycle phase of a GroupSession. Transitions follow
// forming -> active -> consensus_pending -> closed with no skips or
// repeats; cancellation jumps straight to closed.
type Phase string

const (
	// PhaseForming: participants are being validated against the registry.
	PhaseForming Phase = "forming"
	// PhaseActive: broadcast rounds are running.
	PhaseActive Phase = "active"
	// PhaseConsensusPending: a consensus request is being aggregated.
	PhaseConsensusPending Phase = "consensus_pending"
	// PhaseClosed is terminal; the recommendation and transcript stay
	// readable but no further broadcasts are accepted.
	PhaseClosed Phase = "closed"
)

// CoordinationMode selects how the group is steered.
type CoordinationMode string

const (
	// ModeCollaborative lets every participant contribute equally.
	ModeCollaborative CoordinationMode = "collaborative"
	// ModeDirective gives the initiator steering authority.
	ModeDirective CoordinationMode = "directive"
)

// DecisionMode selects how outcomes are derived.
type DecisionMode string

const (
	// DecisionConsensus derives the outcome from uniform agreement.
	DecisionConsensus DecisionMode = "consensus"
	// DecisionWeightedVote derives the outcome from the weight tables of a
	// consensus request.
	DecisionWeightedVote DecisionMode = "weighted_vote"
)

// Participant is one seat in a group session.
type Participant struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
}

// EntryKind classifies a transcript entry.
type EntryKind string

const (
	// EntryBroadcast records the fan-out of a topic message.
	EntryBroadcast EntryKind = "broadcast"
	// EntryResponse records a participant's reply, in arrival order.
	EntryResponse EntryKind = "response"
	// EntryTimeout records a participant missing a round's deadline.
	EntryTimeout EntryKind = "timeout"
	// EntryNote records coordinator bookkeeping (cancellation reasons,
	// consensus omissions).
	EntryNote EntryKind = "note"
)

// TranscriptEntry is one record in a group's append-only transcript.
// Entries are totally ordered by arrival; Seq reflects that order.
type TranscriptEntry struct {
	Seq        int          `json:"seq"`
	Kind       EntryKind    `json:"kind"`
	AgentID    string       `json:"agent_id,omitempty"`
	Message    core.Message `json:"message,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
}

// GroupSession is a multi-party coordination context. Snapshots returned by
// the coordinator are deep copies; the transcript is append-only.
type GroupSession struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	Participants     []Participant     `json:"participants"`
	CoordinationMode CoordinationMode  `json:"coordination_mode"`
	DecisionMode     DecisionMode      `json:"decision_mode"`
	Phase            Phase             `json:"phase"`
	Transcript       []TranscriptEntry `json:"transcript"`
	Recommendation   *Recommendation   `json:"recommendation,omitempty"`
	CloseReason      string            `json:"close_reason,omitempty"`
	Created          time.Time         `json:"created"`
}

func (g GroupSession) clone() GroupSession {
	out := g
	out.Participants = append([]Participant(nil), g.Participants...)
	out.Transcript = append([]TranscriptEntry(nil), g.Transcript...)
	if g.Recommendation != nil {
		rec := g.Recommendation.clone()
		out.Recommendation = &rec
	}
	return out
}

// DecisionPoint is one question put to the group, with its options in the
// order the caller specified (that order is the final tie-break).
type DecisionPoint struct {
	Category string   `json:"category"`
	Options  []string `json:"options"`
}

// ConsensusRequest asks the coordinator to aggregate votes for a list of
// decision points. Weights maps category -> participant -> voting weight in
// [0,1]; per category the table must sum to 1.0 within WeightTolerance.
type ConsensusRequest struct {
	DecisionPoints []DecisionPoint               `json:"decision_points"`
	Weights        map[string]map[string]float64 `json:"weights"`
}

// CategoryResult is the aggregated outcome for one decision point.
type CategoryResult struct {
	Category string `json:"category"`
	Winner   string `json:"winner"`
	// Scores holds the renormalized aggregated score per option.
	Scores map[string]float64 `json:"scores"`
	// Voters lists participants whose votes counted, Excluded those who
	// missed the deadline or carried no weight.
	Voters   []string `json:"voters"`
	Excluded []string `json:"excluded,omitempty"`
	// TieBreak names the rule that decided the winner when aggregated
	// scores tied; empty when scores alone decided.
	TieBreak string `json:"tie_break,omitempty"`
}

func (r CategoryResult) clone() CategoryResult {
	out := r
	out.Scores = make(map[string]float64, len(r.Scores))
	for k, v := range r.Scores {
		out.Scores[k] = v
	}
	out.Voters = append([]string(nil), r.Voters...)
	out.Excluded = append([]string(nil), r.Excluded...)
	return out
}

// Recommendation is the final consensus outcome for a group session.
type Recommendation struct {
	Results    []CategoryResult `json:"results"`
	ComputedAt time.Time        `json:"computed_at"`
}

func (r Recommendation) clone() Recommendation {
	out := r
	out.Results = make([]CategoryResult, 0, len(r.Results))
	for _, res := range r.Results {
		out.Results = append(out.Results, res.clone())
	}
	return out
}
