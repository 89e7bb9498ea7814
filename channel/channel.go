package channel

import (
	"context"
	"sync"
	"time"

	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/logging"
)

// Channel routes structured messages between independently-addressable
// agents. Every send creates (or, on a re-send with the same correlation
// id, reuses) a Task; the response must reference the correlation id or it
// is discarded with a logged anomaly, never matched speculatively to the
// oldest pending request.
//
// Public methods are safe for concurrent use. Sequence numbers are
// monotonically increasing per destination and establish causal ordering,
// not wall-clock ordering.
type Channel struct {
	id        string
	registry  core.Registry
	transport Transport
	timeout   time.Duration
	logger    logging.Logger

	mu       sync.Mutex
	tasks    map[string]*core.Task
	pending  map[string]context.CancelFunc // correlation id -> cancel
	attempts map[string]int                // correlation id -> delivery tries
	seq      map[string]int64              // target agent id -> last sequence
}

// Options configures a Channel.
type Options struct {
	// Timeout bounds each send when the caller's context carries no
	// deadline. An unbounded wait is a defect, so zero falls back to a
	// conservative default.
	Timeout time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// SendOptions carries per-send overrides.
type SendOptions struct {
	// CorrelationID lets the caller supply an idempotency key; when empty a
	// fresh one is generated. Re-sends with the same key increment the
	// attempt count reported on failure.
	CorrelationID string
}

// New constructs a Channel over the given registry and transport.
func New(registry core.Registry, transport Transport, optFns ...func(o *Options)) *Channel {
	opts := Options{Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Channel{
		id:        core.NewID(),
		registry:  registry,
		transport: transport,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		tasks:     make(map[string]*core.Task),
		pending:   make(map[string]context.CancelFunc),
		attempts:  make(map[string]int),
		seq:       make(map[string]int64),
	}
}

// ID returns the channel identifier scoping task ownership and sequences.
func (c *Channel) ID() string { return c.id }

// Send delivers a message to the target agent and waits for the correlated
// response, bounded by the caller's deadline or the channel timeout. The
// returned task is completed, failed, or cancelled by the time Send
// returns; failures carry the target and attempt count so callers can
// retry deliberately.
func (c *Channel) Send(ctx context.Context, targetAgent string, msg core.Message, optFns ...func(o *SendOptions)) (*core.Task, core.Message, error) {
	var sendOpts SendOptions
	for _, fn := range optFns {
		fn(&sendOpts)
	}

	card, err := c.registry.Resolve(targetAgent)
	if err != nil {
		return nil, core.Message{}, err
	}

	correlationID := sendOpts.CorrelationID
	if correlationID == "" {
		correlationID = core.NewID()
	}

	task := core.NewTask(c.id)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.seq[targetAgent]++
	msg.Sequence = c.seq[targetAgent]
	c.attempts[correlationID]++
	attempts := c.attempts[correlationID]
	c.tasks[task.ID] = task
	c.pending[correlationID] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, correlationID)
		c.mu.Unlock()
	}()

	req := Request{
		CorrelationID: correlationID,
		TaskID:        task.ID,
		Sender:        "channel/" + c.id,
		Target:        targetAgent,
		Message:       msg,
	}

	start := time.Now()
	c.mu.Lock()
	_ = task.Transition(core.TaskInProgress, "delivering to "+targetAgent)
	c.mu.Unlock()

	resp, err := c.transport.Deliver(ctx, card.Endpoint, req)
	if err != nil {
		kind := core.KindOf(err)
		if kind != core.KindUnreachable && kind != core.KindTimeout {
			kind = core.KindUnreachable
		}
		if ctx.Err() == context.Canceled {
			c.failOrCancel(task, true, "send cancelled")
			c.logger.Warn("send cancelled", "target", targetAgent, "attempts", attempts, "duration", time.Since(start))
			return task, core.Message{}, core.WrapError(core.KindTimeout, "channel.send", targetAgent, ctx.Err())
		}
		c.failOrCancel(task, false, err.Error())
		c.logger.Error("send failed", "target", targetAgent, "attempts", attempts, "duration", time.Since(start), "error", err.Error())
		return task, core.Message{}, &core.Error{Kind: kind, Op: "channel.send", Target: targetAgent, Attempts: attempts, Err: err}
	}

	if resp.CorrelationID != correlationID {
		// Unrecognized correlation: discard, never match speculatively.
		c.logger.Warn("discarding response with unrecognized correlation id",
			"target", targetAgent, "got", resp.CorrelationID, "want", correlationID)
		c.failOrCancel(task, false, "response correlation mismatch")
		return task, core.Message{}, &core.Error{Kind: core.KindTimeout, Op: "channel.send", Target: targetAgent, Attempts: attempts}
	}

	c.mu.Lock()
	err = task.Complete(resp.Message)
	c.mu.Unlock()
	if err != nil {
		return task, core.Message{}, err
	}
	c.logger.Debug("send completed", "target", targetAgent, "attempts", attempts, "duration", time.Since(start))
	return task, resp.Message, nil
}

// Cancel aborts an in-flight send by its correlation id.
func (c *Channel) Cancel(correlationID string) error {
	c.mu.Lock()
	cancel, ok := c.pending[correlationID]
	c.mu.Unlock()
	if !ok {
		return core.NewError(core.KindNotFound, "channel.cancel", correlationID)
	}
	cancel()
	return nil
}

// Task returns a snapshot of a task owned by this channel.
func (c *Channel) Task(id string) (core.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[id]
	if !ok {
		return core.Task{}, core.NewError(core.KindNotFound, "channel.task", id)
	}
	return *task, nil
}

func (c *Channel) failOrCancel(task *core.Task, cancelled bool, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancelled {
		_ = task.Cancel(detail)
		return
	}
	_ = task.Fail(detail)
}
