// Package httpapi exposes the coordination core over a JSON HTTP surface.
// Session identity travels on every gated request via the configured
// header; the gateway's policy decides how absence is handled before any
// handler runs.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ArnBdev/oneagent/channel"
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/gateway"
	"github.com/ArnBdev/oneagent/group"
	"github.com/ArnBdev/oneagent/logging"
)

// Server wires the HTTP surface to the core components.
type Server struct {
	store       core.SessionStore
	registry    core.Registry
	channel     *channel.Channel
	coordinator *group.Coordinator
	gateway     *gateway.Gateway
	sessionTTL  time.Duration
	logger      logging.Logger
}

// Options configures the server.
type Options struct {
	// SessionTTL applies to sessions created via POST /sessions.
	SessionTTL time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewServer builds the HTTP handler. Session creation and health checks are
// open; every other route passes through the gateway first.
func NewServer(store core.SessionStore, reg core.Registry, ch *channel.Channel, coord *group.Coordinator, gw *gateway.Gateway, optFns ...func(o *Options)) http.Handler {
	opts := Options{SessionTTL: 30 * time.Minute, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{
		store:       store,
		registry:    reg,
		channel:     ch,
		coordinator: coord,
		gateway:     gw,
		sessionTTL:  opts.SessionTTL,
		logger:      opts.Logger,
	}

	gated := http.NewServeMux()
	gated.HandleFunc("/agents/register", s.handleRegister)
	gated.HandleFunc("/agents/discover", s.handleDiscover)
	gated.HandleFunc("/messages/send", s.handleSend)
	gated.HandleFunc("/groups/create", s.handleCreateGroup)
	gated.HandleFunc("/groups/", s.handleGroupWithID)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessionWithID)
	mux.Handle("/", gw.Middleware(gated, func(w http.ResponseWriter, err error) {
		writeError(w, err)
	}))

	return chainMiddlewares(mux, s.withLogging)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

type sessionResponse struct {
	ID              string    `json:"id"`
	Created         time.Time `json:"created"`
	Expires         time.Time `json:"expires"`
	LastAccess      time.Time `json:"last_access"`
	ProtocolVersion string    `json:"protocol_version,omitempty"`
}

type sendMessageRequest struct {
	TargetID      string       `json:"target_id"`
	Message       core.Message `json:"message"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

type sendMessageResponse struct {
	Task     core.Task    `json:"task"`
	Response core.Message `json:"response"`
}

type createGroupRequest struct {
	Topic            string              `json:"topic"`
	Participants     []group.Participant `json:"participants"`
	CoordinationMode string              `json:"coordination_mode,omitempty"`
	DecisionMode     string              `json:"decision_mode,omitempty"`
}

type joinGroupRequest struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
}

type broadcastRequest struct {
	Message core.Message `json:"message"`
}

type cancelGroupRequest struct {
	Reason string `json:"reason"`
}

type groupStateResponse struct {
	ID             string                  `json:"id"`
	Topic          string                  `json:"topic"`
	Phase          group.Phase             `json:"phase"`
	Participants   []group.Participant     `json:"participants"`
	Transcript     []group.TranscriptEntry `json:"transcript"`
	Recommendation *group.Recommendation   `json:"recommendation,omitempty"`
	CloseReason    string                  `json:"close_reason,omitempty"`
	TieBreak       []string                `json:"tie_break_policy"`
}

// ─────────────────────────────────────────────
// Session resource
// ─────────────────────────────────────────────

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}
	ttl := s.sessionTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	sess, err := s.store.Create(ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		sess, err := s.store.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	case http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// ─────────────────────────────────────────────
// Agent registry
// ─────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var card core.AgentCard
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.registry.Register(card); err != nil {
		writeError(w, err)
		return
	}
	stored, err := s.registry.Resolve(card.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	caps := r.URL.Query()["cap"]
	cards, err := s.registry.Discover(core.NewCapabilitySet(caps...))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// ─────────────────────────────────────────────
// Messaging
// ─────────────────────────────────────────────

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.TargetID == "" {
		badRequest(w, "target_id is required")
		return
	}
	task, resp, err := s.channel.Send(r.Context(), req.TargetID, req.Message, func(o *channel.SendOptions) {
		o.CorrelationID = req.CorrelationID
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{Task: *task, Response: resp})
}

// ─────────────────────────────────────────────
// Group coordination
// ─────────────────────────────────────────────

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	coordMode := group.CoordinationMode(req.CoordinationMode)
	if coordMode == "" {
		coordMode = group.ModeCollaborative
	}
	decMode := group.DecisionMode(req.DecisionMode)
	if decMode == "" {
		decMode = group.DecisionWeightedVote
	}
	sess, err := s.coordinator.CreateGroup(req.Topic, req.Participants, coordMode, decMode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"group_id": sess.ID})
}

// /groups/{id}/join, /groups/{id}/state, /groups/{id}/broadcast,
// /groups/{id}/consensus, DELETE /groups/{id}
func (s *Server) handleGroupWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/groups/")
	if path == "" {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method == http.MethodDelete {
			s.handleCancelGroup(w, r, id)
			return
		}
		methodNotAllowed(w)
		return
	}
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	switch parts[1] {
	case "join":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleJoinGroup(w, r, id)
	case "state":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGroupState(w, r, id)
	case "broadcast":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleBroadcast(w, r, id)
	case "consensus":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleConsensus(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request, id string) {
	var req joinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		badRequest(w, "agent_id is required")
		return
	}
	if err := s.coordinator.Join(id, group.Participant{AgentID: req.AgentID, Role: req.Role}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"group_id": id})
}

func (s *Server) handleGroupState(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.coordinator.State(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupStateResponse{
		ID:             sess.ID,
		Topic:          sess.Topic,
		Phase:          sess.Phase,
		Participants:   sess.Participants,
		Transcript:     sess.Transcript,
		Recommendation: sess.Recommendation,
		CloseReason:    sess.CloseReason,
		TieBreak:       s.coordinator.TieBreakPolicy(),
	})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request, id string) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	sess, err := s.coordinator.Broadcast(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": sess.ID, "phase": sess.Phase, "transcript_len": len(sess.Transcript)})
}

func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request, id string) {
	var req group.ConsensusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	rec, err := s.coordinator.SubmitConsensus(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelGroup(w http.ResponseWriter, r *http.Request, id string) {
	var req cancelGroupRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "cancelled by caller"
	}
	if err := s.coordinator.Cancel(id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toSessionResponse(sess core.Session) sessionResponse {
	return sessionResponse{
		ID:              sess.ID,
		Created:         sess.Created,
		Expires:         sess.Expires,
		LastAccess:      sess.LastAccess,
		ProtocolVersion: sess.ProtocolVersion,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindExpired:
		status = http.StatusGone
	case core.KindInvalidInput:
		status = http.StatusBadRequest
	case core.KindConflict:
		status = http.StatusConflict
	case core.KindTimeout:
		status = http.StatusGatewayTimeout
	case core.KindUnreachable:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(core.KindOf(err)),
	})
}
