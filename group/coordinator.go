package group

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ArnBdev/oneagent/channel"
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/logging"
)

// MessageSender is the slice of the messaging channel the coordinator
// needs. *channel.Channel satisfies it.
type MessageSender interface {
	Send(ctx context.Context, targetAgent string, msg core.Message, optFns ...func(o *channel.SendOptions)) (*core.Task, core.Message, error)
}

// Coordinator runs multi-party group sessions: it validates participants
// against the registry, fans topic messages out over the messaging channel,
// collects responses into arrival-ordered transcripts and computes weighted
// consensus outcomes. Public methods are safe for concurrent use; all
// mutations of a single group are serialized on that group's lock.
type Coordinator struct {
	registry core.Registry
	sender   MessageSender
	archive  core.Archive
	deadline time.Duration
	logger   logging.Logger
	now      func() time.Time

	mu     sync.RWMutex
	groups map[string]*groupState
}

type groupState struct {
	mu      sync.Mutex
	session GroupSession
}

// Options configures a Coordinator.
type Options struct {
	// ResponseDeadline bounds each broadcast/consensus round. Participants
	// who do not respond in time are excluded from that round and the
	// omission is recorded in the transcript.
	ResponseDeadline time.Duration
	// Archive receives the final transcript of every closed group. Nil
	// disables archival.
	Archive core.Archive
	// Clock overrides the time source (tests).
	Clock func() time.Time
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewCoordinator constructs a Coordinator over the registry and channel.
func NewCoordinator(registry core.Registry, sender MessageSender, optFns ...func(o *Options)) *Coordinator {
	opts := Options{ResponseDeadline: 30 * time.Second, Clock: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ResponseDeadline <= 0 {
		opts.ResponseDeadline = 30 * time.Second
	}
	return &Coordinator{
		registry: registry,
		sender:   sender,
		archive:  opts.Archive,
		deadline: opts.ResponseDeadline,
		logger:   opts.Logger,
		now:      opts.Clock,
		groups:   make(map[string]*groupState),
	}
}

// TieBreakPolicy returns the ordered tie-break rules applied to equal
// aggregated scores, so callers can query the design choice instead of
// guessing at silent randomness.
func (c *Coordinator) TieBreakPolicy() []string {
	return []string{TieBreakHighestWeight, TieBreakFirstListed}
}

// ResponseDeadline returns the configured per-round deadline.
func (c *Coordinator) ResponseDeadline() time.Duration { return c.deadline }

// CreateGroup validates every participant against the registry and opens a
// new group session in the forming phase. Any unresolvable participant
// aborts formation with a named error; seats are never silently dropped.
func (c *Coordinator) CreateGroup(topic string, participants []Participant, coordMode CoordinationMode, decMode DecisionMode) (GroupSession, error) {
	if len(participants) == 0 {
		return GroupSession{}, core.NewError(core.KindInvalidInput, "group.create", "no participants")
	}
	var unresolvable []string
	for _, p := range participants {
		if _, err := c.registry.Resolve(p.AgentID); err != nil {
			unresolvable = append(unresolvable, p.AgentID)
		}
	}
	if len(unresolvable) > 0 {
		return GroupSession{}, core.NewError(core.KindInvalidInput, "group.create",
			"unresolvable participant(s): "+strings.Join(unresolvable, ", "))
	}

	state := &groupState{session: GroupSession{
		ID:               core.NewID(),
		Topic:            topic,
		Participants:     append([]Participant(nil), participants...),
		CoordinationMode: coordMode,
		DecisionMode:     decMode,
		Phase:            PhaseForming,
		Created:          c.now().UTC(),
	}}

	c.mu.Lock()
	c.groups[state.session.ID] = state
	c.mu.Unlock()

	c.logger.Info("group session formed", "group_id", state.session.ID, "participants", len(participants))
	return state.session.clone(), nil
}

// Join adds a participant to an open group after validating the agent
// against the registry.
func (c *Coordinator) Join(groupID string, p Participant) error {
	state, err := c.state(groupID)
	if err != nil {
		return err
	}
	if _, err := c.registry.Resolve(p.AgentID); err != nil {
		return core.NewError(core.KindInvalidInput, "group.join", "unresolvable participant: "+p.AgentID)
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.session.Phase == PhaseClosed {
		return core.NewError(core.KindConflict, "group.join", groupID)
	}
	state.session.Participants = append(state.session.Participants, p)
	return nil
}

// State returns a deep-copied snapshot of the group session; transcript and
// recommendation remain readable after closure.
func (c *Coordinator) State(groupID string) (GroupSession, error) {
	state, err := c.state(groupID)
	if err != nil {
		return GroupSession{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.session.clone(), nil
}

// Broadcast fans the topic message out to every participant concurrently
// and collects responses into the transcript in arrival order. The round is
// bounded by the response deadline; participants missing it get a timeout
// entry. The first broadcast moves the group from forming to active.
func (c *Coordinator) Broadcast(ctx context.Context, groupID string, msg core.Message) (GroupSession, error) {
	state, err := c.state(groupID)
	if err != nil {
		return GroupSession{}, err
	}

	state.mu.Lock()
	switch state.session.Phase {
	case PhaseForming:
		state.session.Phase = PhaseActive
	case PhaseActive:
		// additional round
	default:
		phase := state.session.Phase
		state.mu.Unlock()
		return GroupSession{}, core.NewError(core.KindConflict, "group.broadcast", groupID+" is "+string(phase))
	}
	c.appendLocked(state, TranscriptEntry{Kind: EntryBroadcast, Message: msg})
	participants := append([]Participant(nil), state.session.Participants...)
	state.mu.Unlock()

	start := c.now()
	responses, timeouts := c.fanOut(ctx, state, participants, msg, nil)
	c.logger.Info("broadcast round completed", "group_id", groupID,
		"participants", len(participants), "responses", responses, "timeouts", timeouts,
		"duration", c.now().Sub(start))

	return c.State(groupID)
}

// SubmitConsensus opens the consensus phase: the decision points are fanned
// out as a task directive, votes are collected until the deadline, each
// category is aggregated over renormalized responder weights, and the group
// closes with the final recommendation.
func (c *Coordinator) SubmitConsensus(ctx context.Context, groupID string, req ConsensusRequest) (Recommendation, error) {
	if len(req.DecisionPoints) == 0 {
		return Recommendation{}, core.NewError(core.KindInvalidInput, "group.consensus", "no decision points")
	}
	if err := ValidateWeights(req); err != nil {
		return Recommendation{}, err
	}

	state, err := c.state(groupID)
	if err != nil {
		return Recommendation{}, err
	}

	state.mu.Lock()
	if state.session.Phase != PhaseActive {
		phase := state.session.Phase
		state.mu.Unlock()
		return Recommendation{}, core.NewError(core.KindConflict, "group.consensus", groupID+" is "+string(phase))
	}
	state.session.Phase = PhaseConsensusPending
	participants := append([]Participant(nil), state.session.Participants...)
	state.mu.Unlock()

	directive := core.Message{
		ID:   core.NewID(),
		Role: "coordinator",
		Kind: core.KindTaskDirective,
		Parts: []core.Part{core.DataPart{Data: map[string]any{
			"consensus":       true,
			"decision_points": decisionPointsPayload(req.DecisionPoints),
		}}},
	}

	votes := make(map[string]map[string]string)
	var votesMu sync.Mutex
	collect := func(agentID string, resp core.Message) {
		if parsed := parseVotes(resp); len(parsed) > 0 {
			votesMu.Lock()
			votes[agentID] = parsed
			votesMu.Unlock()
		}
	}
	c.fanOut(ctx, state, participants, directive, collect)

	rec := Recommendation{ComputedAt: c.now().UTC()}
	for _, dp := range req.DecisionPoints {
		categoryVotes := make(map[string]string)
		for agentID, v := range votes {
			if option, ok := v[dp.Category]; ok {
				categoryVotes[agentID] = option
			}
		}
		result := AggregateCategory(dp, req.Weights[dp.Category], categoryVotes)
		rec.Results = append(rec.Results, result)
		c.logger.Info("consensus computed", "group_id", groupID, "category", dp.Category,
			"winner", result.Winner, "voters", len(result.Voters))
	}

	state.mu.Lock()
	if state.session.Phase == PhaseClosed {
		// Cancelled while aggregating; the cancellation reason stands.
		state.mu.Unlock()
		return Recommendation{}, core.NewError(core.KindConflict, "group.consensus", groupID)
	}
	state.session.Phase = PhaseClosed
	state.session.CloseReason = "consensus complete"
	state.session.Recommendation = &rec
	c.appendLocked(state, TranscriptEntry{Kind: EntryNote, Detail: "consensus complete"})
	c.archiveLocked(state)
	state.mu.Unlock()

	return rec.clone(), nil
}

// Cancel moves the group directly to closed with a recorded reason. Any
// response arriving afterwards is rejected and never enters the transcript.
func (c *Coordinator) Cancel(groupID, reason string) error {
	state, err := c.state(groupID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.session.Phase == PhaseClosed {
		return core.NewError(core.KindConflict, "group.cancel", groupID)
	}
	state.session.Phase = PhaseClosed
	state.session.CloseReason = reason
	c.appendLocked(state, TranscriptEntry{Kind: EntryNote, Detail: "cancelled: " + reason})
	c.archiveLocked(state)
	c.logger.Info("group session cancelled", "group_id", groupID, "reason", reason)
	return nil
}

func (c *Coordinator) state(groupID string) (*groupState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.groups[groupID]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "group.state", groupID)
	}
	return state, nil
}

// fanOut delivers msg to every participant concurrently and records
// outcomes in arrival order. Responses landing after closure are rejected
// with a conflict log entry instead of entering the transcript. Returns the
// number of responses and timeouts recorded.
func (c *Coordinator) fanOut(ctx context.Context, state *groupState, participants []Participant, msg core.Message, collect func(agentID string, resp core.Message)) (responses, timeouts int) {
	rctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	type outcome struct {
		agentID string
		resp    core.Message
		err     error
	}
	results := make(chan outcome, len(participants))
	var wg sync.WaitGroup
	for _, p := range participants {
		wg.Add(1)
		go func(p Participant) {
			defer wg.Done()
			_, resp, err := c.sender.Send(rctx, p.AgentID, msg)
			results <- outcome{agentID: p.AgentID, resp: resp, err: err}
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Single consumer: transcript order is arrival order, not participant
	// list order.
	for o := range results {
		state.mu.Lock()
		if state.session.Phase == PhaseClosed {
			state.mu.Unlock()
			c.logger.Warn("rejecting response for closed group",
				"group_id", state.session.ID, "agent_id", o.agentID, "error", core.KindConflict)
			continue
		}
		if o.err != nil {
			timeouts++
			c.appendLocked(state, TranscriptEntry{Kind: EntryTimeout, AgentID: o.agentID, Detail: o.err.Error()})
			state.mu.Unlock()
			continue
		}
		responses++
		c.appendLocked(state, TranscriptEntry{Kind: EntryResponse, AgentID: o.agentID, Message: o.resp})
		state.mu.Unlock()
		if collect != nil {
			collect(o.agentID, o.resp)
		}
	}
	return responses, timeouts
}

// appendLocked appends a transcript entry; caller holds state.mu.
func (c *Coordinator) appendLocked(state *groupState, entry TranscriptEntry) {
	entry.Seq = len(state.session.Transcript) + 1
	entry.ReceivedAt = c.now().UTC()
	state.session.Transcript = append(state.session.Transcript, entry)
}

// archiveLocked appends the final transcript to the external archive;
// caller holds state.mu.
func (c *Coordinator) archiveLocked(state *groupState) {
	if c.archive == nil {
		return
	}
	content, err := json.Marshal(state.session.Transcript)
	if err != nil {
		c.logger.Error("transcript encode failed", "group_id", state.session.ID, "error", err.Error())
		return
	}
	metadata := map[string]any{
		"topic":        state.session.Topic,
		"close_reason": state.session.CloseReason,
		"participants": len(state.session.Participants),
	}
	if err := c.archive.Append(state.session.ID, string(content), metadata); err != nil {
		c.logger.Error("transcript archive failed", "group_id", state.session.ID, "error", err.Error())
	}
}

func decisionPointsPayload(points []DecisionPoint) []map[string]any {
	out := make([]map[string]any, 0, len(points))
	for _, dp := range points {
		out = append(out, map[string]any{"category": dp.Category, "options": dp.Options})
	}
	return out
}

// parseVotes extracts the category -> option vote map from a participant's
// response message. Votes ride in a data part under the "votes" key.
func parseVotes(msg core.Message) map[string]string {
	for _, part := range msg.Parts {
		dataPart, ok := part.(core.DataPart)
		if !ok {
			continue
		}
		raw, ok := dataPart.Data["votes"]
		if !ok {
			continue
		}
		out := make(map[string]string)
		switch votes := raw.(type) {
		case map[string]string:
			for category, option := range votes {
				out[category] = option
			}
		case map[string]any:
			for category, option := range votes {
				if s, ok := option.(string); ok {
					out[category] = s
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
