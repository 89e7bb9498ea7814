package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ArnBdev/oneagent/core"
)

// HTTPTransport delivers request envelopes as JSON POSTs to the target
// agent's endpoint.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport constructs a transport with the given client timeout as
// a backstop; per-request deadlines still come from the context.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

// Deliver posts the envelope and decodes the response envelope. Connection
// failures map to KindUnreachable, deadline hits to KindTimeout.
func (t *HTTPTransport) Deliver(ctx context.Context, endpoint string, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request envelope: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, core.WrapError(core.KindTimeout, "transport.deliver", endpoint, err)
		}
		return Response{}, core.WrapError(core.KindUnreachable, "transport.deliver", endpoint, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return Response{}, core.NewError(core.KindUnreachable, "transport.deliver",
			fmt.Sprintf("%s: status %d", endpoint, httpResp.StatusCode))
	}
	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, core.WrapError(core.KindInvalidInput, "transport.deliver", endpoint, err)
	}
	return resp, nil
}
