package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArnBdev/oneagent/channel"
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/gateway"
	"github.com/ArnBdev/oneagent/group"
	"github.com/ArnBdev/oneagent/internal/testutil"
	"github.com/ArnBdev/oneagent/registry"
	"github.com/ArnBdev/oneagent/session"
)

type harness struct {
	handler   http.Handler
	store     *session.InMemoryStore
	transport *channel.LoopbackTransport
	registry  *registry.InMemoryRegistry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := session.NewInMemoryStore()
	t.Cleanup(store.Close)
	reg := registry.NewInMemoryRegistry()
	transport := channel.NewLoopbackTransport()
	ch := channel.New(reg, transport, func(o *channel.Options) { o.Timeout = 2 * time.Second })
	coord := group.NewCoordinator(reg, ch, func(o *group.Options) { o.ResponseDeadline = 2 * time.Second })
	gw := gateway.New(store)
	return &harness{
		handler:   NewServer(store, reg, ch, coord, gw),
		store:     store,
		transport: transport,
		registry:  reg,
	}
}

func (h *harness) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set(gateway.DefaultHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) session(t *testing.T) string {
	t.Helper()
	sess, err := h.store.Create(time.Hour)
	require.NoError(t, err)
	return sess.ID
}

func (h *harness) bindVoter(t *testing.T, id, option string) {
	t.Helper()
	h.transport.Register("loop://"+id, func(ctx context.Context, req channel.Request) (channel.Response, error) {
		var reply core.Message
		if req.Message.Kind == core.KindTaskDirective {
			reply = testutil.VoteMessage(map[string]string{"technical": option})
		} else {
			reply = core.NewTextMessage("agent", "ack")
		}
		return channel.Response{CorrelationID: req.CorrelationID, Message: reply}, nil
	})
	require.NoError(t, h.registry.Register(testutil.NewCard(id).WithSkills("coordination").Build()))
}

func TestHealthzOpen(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionResource(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/sessions", "", map[string]int{"ttl_seconds": 300})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 5*time.Minute, created.Expires.Sub(created.Created))

	rec = h.do(t, http.MethodGet, "/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodDelete, "/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGatedRoutesRequireSession(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/agents/discover?cap=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/agents/discover?cap=x", "no-such-session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpiredSessionMapsToGone(t *testing.T) {
	store := session.NewInMemoryStore(func(o *session.InMemoryOptions) {
		o.Clock = time.Now
	})
	t.Cleanup(store.Close)
	reg := registry.NewInMemoryRegistry()
	ch := channel.New(reg, channel.NewLoopbackTransport())
	coord := group.NewCoordinator(reg, ch)
	handler := NewServer(store, reg, ch, coord, gateway.New(store))

	sess, err := store.Create(time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/agents/discover?cap=x", nil)
	req.Header.Set(gateway.DefaultHeader, sess.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestRegisterAndDiscover(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t)

	card := testutil.NewCard("dev").WithSkills("planning", "review").Build()
	rec := h.do(t, http.MethodPost, "/agents/register", sid, card)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/agents/discover?cap=planning", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cards []core.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "dev", cards[0].ID)

	// Invalid card and empty capability query map to 400.
	rec = h.do(t, http.MethodPost, "/agents/register", sid, core.AgentCard{Name: "no id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodGet, "/agents/discover", sid, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t)
	h.bindVoter(t, "dev", "X")

	rec := h.do(t, http.MethodPost, "/messages/send", sid, sendMessageRequest{
		TargetID: "dev",
		Message:  core.NewTextMessage("user", "hello"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp sendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, core.TaskCompleted, resp.Task.State)
	assert.Equal(t, "ack", resp.Response.Text())

	// Unregistered target maps to 404, unreachable endpoint to 502.
	rec = h.do(t, http.MethodPost, "/messages/send", sid, sendMessageRequest{
		TargetID: "ghost",
		Message:  core.NewTextMessage("user", "hello"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, h.registry.Register(testutil.NewCard("dark").Build()))
	rec = h.do(t, http.MethodPost, "/messages/send", sid, sendMessageRequest{
		TargetID: "dark",
		Message:  core.NewTextMessage("user", "hello"),
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGroupFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t)
	h.bindVoter(t, "dev", "X")
	h.bindVoter(t, "office", "X")
	h.bindVoter(t, "core", "Y")

	rec := h.do(t, http.MethodPost, "/groups/create", sid, createGroupRequest{
		Topic:        "architecture",
		Participants: testutil.Participants("dev", "office", "core"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	groupID := created["group_id"]
	require.NotEmpty(t, groupID)

	rec = h.do(t, http.MethodPost, "/groups/"+groupID+"/broadcast", sid, broadcastRequest{
		Message: core.NewTextMessage("coordinator", "proposals?"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/groups/"+groupID+"/consensus", sid, group.ConsensusRequest{
		DecisionPoints: []group.DecisionPoint{{Category: "technical", Options: []string{"X", "Y"}}},
		Weights: map[string]map[string]float64{
			"technical": {"dev": 0.4, "office": 0.4, "core": 0.2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var rec2 group.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec2))
	require.Len(t, rec2.Results, 1)
	assert.Equal(t, "X", rec2.Results[0].Winner)

	rec = h.do(t, http.MethodGet, "/groups/"+groupID+"/state", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state groupStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, group.PhaseClosed, state.Phase)
	assert.NotEmpty(t, state.Transcript)
	assert.Equal(t, []string{group.TieBreakHighestWeight, group.TieBreakFirstListed}, state.TieBreak)

	// A broadcast after closure conflicts.
	rec = h.do(t, http.MethodPost, "/groups/"+groupID+"/broadcast", sid, broadcastRequest{
		Message: core.NewTextMessage("coordinator", "again"),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelGroupOverHTTP(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t)
	h.bindVoter(t, "dev", "X")

	rec := h.do(t, http.MethodPost, "/groups/create", sid, createGroupRequest{
		Topic:        "planning",
		Participants: testutil.Participants("dev"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = h.do(t, http.MethodDelete, "/groups/"+created["group_id"], sid, cancelGroupRequest{Reason: "done"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodDelete, "/groups/"+created["group_id"], sid, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnknownGroupRoutes(t *testing.T) {
	h := newHarness(t)
	sid := h.session(t)

	rec := h.do(t, http.MethodGet, "/groups/nope/state", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, "/groups/nope/unknown-op", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
