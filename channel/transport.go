// Package channel implements point-to-point delivery of structured messages
// between two agents with request/response task correlation. Delivery is
// at-most-once from the channel's perspective; callers needing at-least-once
// re-send with idempotency keys derived from the original message
// identifier.
package channel

import (
	"context"
	"sync"

	"github.com/ArnBdev/oneagent/core"
)

// Request is the wire envelope delivered to a target agent endpoint.
type Request struct {
	CorrelationID string       `json:"correlation_id"`
	TaskID        string       `json:"task_id"`
	Sender        string       `json:"sender"`
	Target        string       `json:"target"`
	Message       core.Message `json:"message"`
}

// Response is the wire envelope a target agent returns. It must reference
// the correlation id of the request it answers.
type Response struct {
	CorrelationID string       `json:"correlation_id"`
	Message       core.Message `json:"message"`
}

// Transport delivers a request envelope to an agent endpoint and returns
// its response. Implementations surface unreachable endpoints as
// KindUnreachable and deadline hits as KindTimeout; they never swallow
// failures.
type Transport interface {
	Deliver(ctx context.Context, endpoint string, req Request) (Response, error)
}

// Handler processes a delivered request in-process.
type Handler func(ctx context.Context, req Request) (Response, error)

// LoopbackTransport routes envelopes to in-process handlers registered per
// endpoint. Used by tests and single-process deployments.
type LoopbackTransport struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLoopbackTransport constructs an empty loopback transport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{handlers: make(map[string]Handler)}
}

// Register binds a handler to an endpoint, replacing any previous binding.
func (t *LoopbackTransport) Register(endpoint string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[endpoint] = h
}

// Deliver invokes the handler bound to the endpoint, honouring context
// cancellation while the handler runs.
func (t *LoopbackTransport) Deliver(ctx context.Context, endpoint string, req Request) (Response, error) {
	t.mu.RLock()
	h, ok := t.handlers[endpoint]
	t.mu.RUnlock()
	if !ok {
		return Response{}, core.NewError(core.KindUnreachable, "transport.deliver", endpoint)
	}

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := h(ctx, req)
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return Response{}, core.WrapError(core.KindTimeout, "transport.deliver", endpoint, ctx.Err())
	case r := <-done:
		return r.resp, r.err
	}
}
