package core

import (
	"time"
)

// TaskState is the lifecycle state of a Task.
type TaskState string

const (
	// TaskSubmitted is the initial state of every task.
	TaskSubmitted TaskState = "submitted"
	// TaskInProgress indicates the target agent accepted the work.
	TaskInProgress TaskState = "in_progress"
	// TaskCompleted is terminal: the task finished with a result.
	TaskCompleted TaskState = "completed"
	// TaskFailed is terminal: the task finished with an error.
	TaskFailed TaskState = "failed"
	// TaskCancelled is terminal: the caller withdrew the task.
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// legalTransitions encodes the submitted -> in_progress -> terminal machine.
var legalTransitions = map[TaskState][]TaskState{
	TaskSubmitted:  {TaskInProgress, TaskCompleted, TaskFailed, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskFailed, TaskCancelled},
}

// TaskTransition is one entry in a task's append-only history.
type TaskTransition struct {
	From   TaskState `json:"from"`
	To     TaskState `json:"to"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// Task correlates a request with its eventual response on a channel. It is
// owned by the channel that created it; completion or failure is terminal
// and irreversible.
type Task struct {
	ID        string           `json:"id"`
	ChannelID string           `json:"channel_id"`
	State     TaskState        `json:"state"`
	Result    *Message         `json:"result,omitempty"`
	History   []TaskTransition `json:"history"`
}

// NewTask creates a task in the submitted state.
func NewTask(channelID string) *Task {
	return &Task{
		ID:        NewID(),
		ChannelID: channelID,
		State:     TaskSubmitted,
		History:   []TaskTransition{{To: TaskSubmitted, At: time.Now().UTC()}},
	}
}

// Transition moves the task to the next state, recording the step in the
// history. Transitions out of a terminal state, or edges the machine does
// not define, are rejected with a Conflict error.
func (t *Task) Transition(to TaskState, detail string) error {
	for _, allowed := range legalTransitions[t.State] {
		if allowed == to {
			t.History = append(t.History, TaskTransition{From: t.State, To: to, At: time.Now().UTC(), Detail: detail})
			t.State = to
			return nil
		}
	}
	return NewError(KindConflict, "task.transition", string(t.State)+" -> "+string(to))
}

// Complete marks the task completed with its result message.
func (t *Task) Complete(result Message) error {
	if err := t.Transition(TaskCompleted, ""); err != nil {
		return err
	}
	t.Result = &result
	return nil
}

// Fail marks the task failed with a reason.
func (t *Task) Fail(reason string) error { return t.Transition(TaskFailed, reason) }

// Cancel marks the task cancelled with a reason.
func (t *Task) Cancel(reason string) error { return t.Transition(TaskCancelled, reason) }
