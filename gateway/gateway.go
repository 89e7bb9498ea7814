// Package gateway extracts and validates session identity from inbound
// request metadata before any business logic runs. The session identifier
// travels as a single scalar header value; the header key is matched
// case-insensitively and multi-valued delivery is rejected explicitly rather
// than stringified.
package gateway

import (
	"context"
	"net/http"
	"net/textproto"
	"time"

	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/logging"
)

// Policy selects how missing session identity is treated.
type Policy string

const (
	// PolicyStrict rejects requests with a missing or invalid identifier
	// before they reach business logic.
	PolicyStrict Policy = "strict"
	// PolicyPermissive lets requests without an identifier proceed with a
	// fresh anonymous session; invalid identifiers are still rejected.
	PolicyPermissive Policy = "permissive"
)

// DefaultHeader is the session identity header carried on every request.
const DefaultHeader = "MCP-Session-Id"

// ProtocolVersionHeader carries the client's protocol version, recorded on
// the session when present.
const ProtocolVersionHeader = "MCP-Protocol-Version"

// Gateway resolves inbound request metadata to a session. Policy is a
// configuration input, never a compile-time constant.
type Gateway struct {
	store        core.SessionStore
	header       string
	policy       Policy
	anonymousTTL time.Duration
	logger       logging.Logger
}

// Options configures a Gateway.
type Options struct {
	// Header names the session identity key. Defaults to DefaultHeader.
	Header string
	// Policy selects strict or permissive handling. Defaults to strict.
	Policy Policy
	// AnonymousTTL bounds sessions created for permissive-mode requests
	// that arrive without an identifier.
	AnonymousTTL time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// New constructs a Gateway over the given session store.
func New(store core.SessionStore, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Header:       DefaultHeader,
		Policy:       PolicyStrict,
		AnonymousTTL: 30 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{
		store:        store,
		header:       textproto.CanonicalMIMEHeaderKey(opts.Header),
		policy:       opts.Policy,
		anonymousTTL: opts.AnonymousTTL,
		logger:       opts.Logger,
	}
}

// Policy returns the configured policy.
func (g *Gateway) Policy() Policy { return g.policy }

// Header returns the canonical session header key.
func (g *Gateway) Header() string { return g.header }

// Extract pulls the session identifier out of header-like metadata. The key
// comparison is case-insensitive. A value delivered as more than one entry
// is invalid input, never concatenated or coerced.
//
// Returns the identifier and true when present, empty and false when the
// header is absent.
func (g *Gateway) Extract(metadata map[string][]string) (string, bool, error) {
	var values []string
	found := false
	for key, vs := range metadata {
		if textproto.CanonicalMIMEHeaderKey(key) != g.header {
			continue
		}
		if found {
			// Same key under two spellings counts as multi-valued delivery.
			return "", true, core.NewError(core.KindInvalidInput, "gateway.extract", "duplicate session header keys")
		}
		found = true
		values = vs
	}
	if !found || len(values) == 0 {
		return "", false, nil
	}
	if len(values) > 1 {
		return "", true, core.NewError(core.KindInvalidInput, "gateway.extract", "multi-valued session header")
	}
	if values[0] == "" {
		return "", true, core.NewError(core.KindInvalidInput, "gateway.extract", "empty session header value")
	}
	return values[0], true, nil
}

// Resolve applies the configured policy to the extracted identifier and
// returns the session bound to the request. Strict mode rejects missing
// identity; permissive mode mints an anonymous session for it. An invalid
// or unknown identifier is rejected under both policies.
func (g *Gateway) Resolve(metadata map[string][]string) (core.Session, error) {
	id, present, err := g.Extract(metadata)
	if err != nil {
		return core.Session{}, err
	}
	if !present {
		if g.policy == PolicyStrict {
			return core.Session{}, core.NewError(core.KindInvalidInput, "gateway.resolve", "missing session header")
		}
		sess, err := g.store.Create(g.anonymousTTL)
		if err != nil {
			return core.Session{}, err
		}
		g.logger.Debug("issued anonymous session", "session_id", sess.ID)
		return sess, nil
	}
	return g.store.Touch(id)
}

type sessionCtxKey struct{}

// SessionFromContext returns the session attached by Middleware.
func SessionFromContext(ctx context.Context) (core.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(core.Session)
	return sess, ok
}

// ContextWithSession attaches a session to the context (exposed for tests
// and non-HTTP transports).
func ContextWithSession(ctx context.Context, sess core.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// Middleware resolves session identity for every request and rejects
// failures before the wrapped handler runs. The resolved session rides on
// the request context. The reject callback maps the error to a response;
// pass nil for a bare status write.
func (g *Gateway) Middleware(next http.Handler, reject func(w http.ResponseWriter, err error)) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, err error) {
			status := http.StatusBadRequest
			switch core.KindOf(err) {
			case core.KindNotFound:
				status = http.StatusNotFound
			case core.KindExpired:
				status = http.StatusGone
			}
			http.Error(w, err.Error(), status)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.Resolve(r.Header)
		if err != nil {
			g.logger.Warn("session resolution failed", "error", err.Error())
			reject(w, err)
			return
		}
		if pv := r.Header.Get(ProtocolVersionHeader); pv != "" && sess.ProtocolVersion == "" {
			sess.ProtocolVersion = pv
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}
