package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindExtraction(t *testing.T) {
	err := NewError(KindExpired, "session.get", "abc")
	assert.Equal(t, KindExpired, KindOf(err))
	assert.True(t, IsKind(err, KindExpired))
	assert.False(t, IsKind(err, KindNotFound))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindExpired, KindOf(wrapped))

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestErrorMessageDetail(t *testing.T) {
	err := &Error{Kind: KindTimeout, Op: "channel.send", Target: "agent-1", Attempts: 3, Err: errors.New("deadline exceeded")}
	msg := err.Error()
	assert.Contains(t, msg, "agent-1")
	assert.Contains(t, msg, "3 attempt(s)")
	assert.Contains(t, msg, "deadline exceeded")
}

func TestCapabilitySetNormalization(t *testing.T) {
	set := NewCapabilitySet("b", "a", "b", "", "c")
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{"a", "b", "c"}, set.Members())
	assert.True(t, set.Contains("a"))
	assert.False(t, set.Contains("d"))
}

func TestCapabilitySetSuperset(t *testing.T) {
	skills := NewCapabilitySet("planning", "review", "pricing")
	assert.True(t, skills.ContainsAll(NewCapabilitySet("pricing")))
	assert.True(t, skills.ContainsAll(NewCapabilitySet("pricing", "review")))
	assert.False(t, skills.ContainsAll(NewCapabilitySet("pricing", "legal")))
	assert.Equal(t, 2, skills.Intersection(NewCapabilitySet("pricing", "review", "legal")))
}

func TestSessionActiveWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := NewSession(start, time.Hour)

	assert.True(t, sess.Expires.After(sess.Created))
	assert.True(t, sess.Active(start))
	assert.True(t, sess.Active(start.Add(59*time.Minute)))
	assert.False(t, sess.Active(start.Add(time.Hour)))
	assert.False(t, sess.Active(start.Add(2*time.Hour)))
}

func TestSessionCloneIndependence(t *testing.T) {
	sess := NewSession(time.Now(), time.Minute)
	sess.Attributes["mode"] = "test"
	clone := sess.Clone()
	clone.Attributes["mode"] = "changed"
	assert.Equal(t, "test", sess.Attributes["mode"])
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := Message{
		ID:   NewID(),
		Role: "agent",
		Kind: KindMessage,
		Parts: []Part{
			TextPart{Text: "hello"},
			DataPart{Data: map[string]any{"votes": map[string]any{"technical": "X"}}},
		},
		Sequence: 7,
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.Role, decoded.Role)
	assert.Equal(t, msg.Kind, decoded.Kind)
	assert.Equal(t, int64(7), decoded.Sequence)
	require.Len(t, decoded.Parts, 2)
	assert.Equal(t, "hello", decoded.Parts[0].(TextPart).Text)
	assert.Equal(t, "hello", decoded.Text())
}

func TestUnmarshalPartsRejectsUnknownKind(t *testing.T) {
	_, err := UnmarshalParts([]byte(`[{"kind":"binary","text":"x"}]`))
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("chan-1")
	assert.Equal(t, TaskSubmitted, task.State)

	require.NoError(t, task.Transition(TaskInProgress, "delivering"))
	require.NoError(t, task.Complete(NewTextMessage("agent", "done")))
	assert.Equal(t, TaskCompleted, task.State)
	assert.True(t, task.State.Terminal())
	assert.Len(t, task.History, 3)

	// Terminal states are irreversible.
	err := task.Transition(TaskInProgress, "")
	assert.True(t, IsKind(err, KindConflict))
	err = task.Fail("late failure")
	assert.True(t, IsKind(err, KindConflict))
}

func TestTaskCancelFromSubmitted(t *testing.T) {
	task := NewTask("chan-1")
	require.NoError(t, task.Cancel("caller withdrew"))
	assert.Equal(t, TaskCancelled, task.State)
	assert.Equal(t, "caller withdrew", task.History[len(task.History)-1].Detail)
}

func TestCardValidate(t *testing.T) {
	valid := AgentCard{ID: "dev", Name: "Dev Agent", Endpoint: "http://dev.local"}
	assert.NoError(t, valid.Validate())

	for _, card := range []AgentCard{
		{Name: "x", Endpoint: "e"},
		{ID: "x", Endpoint: "e"},
		{ID: "x", Name: "x"},
	} {
		err := card.Validate()
		assert.True(t, IsKind(err, KindInvalidInput), "card %+v", card)
	}
}
