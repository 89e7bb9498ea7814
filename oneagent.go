// Package oneagent provides a high-level façade over the coordination core:
// session store and gateway, agent registry, messaging channel and group
// coordinator. Most applications interact with this package by:
//  1. Creating a Platform via New() (optionally overriding the in-memory
//     defaults with durable stores or a real transport)
//  2. Registering agent cards and wiring their endpoints
//  3. Sending point-to-point messages or running group sessions
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store, an HTTP transport
// and a structured logger.
package oneagent

import (
	"time"

	"github.com/ArnBdev/oneagent/channel"
	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/gateway"
	"github.com/ArnBdev/oneagent/group"
	"github.com/ArnBdev/oneagent/logging"
	"github.com/ArnBdev/oneagent/memory"
	"github.com/ArnBdev/oneagent/registry"
	"github.com/ArnBdev/oneagent/session"
)

// Options configures the Platform instance.
type Options struct {
	// SessionStore defaults to the in-memory TTL store.
	SessionStore core.SessionStore
	// Registry defaults to the in-memory registry.
	Registry core.Registry
	// Transport defaults to the loopback transport.
	Transport channel.Transport
	// Archive receives closed-group transcripts; defaults to the in-memory
	// archive.
	Archive core.Archive
	// GatewayPolicy defaults to strict.
	GatewayPolicy gateway.Policy
	// SessionHeader defaults to gateway.DefaultHeader.
	SessionHeader string
	// SendTimeout bounds point-to-point sends.
	SendTimeout time.Duration
	// ResponseDeadline bounds group rounds.
	ResponseDeadline time.Duration
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Platform aggregates the coordination components with consistent wiring.
type Platform struct {
	Sessions    core.SessionStore
	Gateway     *gateway.Gateway
	Registry    core.Registry
	Channel     *channel.Channel
	Coordinator *group.Coordinator
	Archive     core.Archive
}

// New creates a Platform with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Platform {
	opts := Options{
		GatewayPolicy:    gateway.PolicyStrict,
		SessionHeader:    gateway.DefaultHeader,
		SendTimeout:      30 * time.Second,
		ResponseDeadline: 30 * time.Second,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewInMemoryRegistry()
	}
	if opts.Transport == nil {
		opts.Transport = channel.NewLoopbackTransport()
	}
	if opts.Archive == nil {
		opts.Archive = memory.NewInMemoryArchive()
	}

	gw := gateway.New(opts.SessionStore, func(o *gateway.Options) {
		o.Policy = opts.GatewayPolicy
		o.Header = opts.SessionHeader
		o.Logger = opts.Logger
	})
	ch := channel.New(opts.Registry, opts.Transport, func(o *channel.Options) {
		o.Timeout = opts.SendTimeout
		o.Logger = opts.Logger
	})
	coord := group.NewCoordinator(opts.Registry, ch, func(o *group.Options) {
		o.ResponseDeadline = opts.ResponseDeadline
		o.Archive = opts.Archive
		o.Logger = opts.Logger
	})

	return &Platform{
		Sessions:    opts.SessionStore,
		Gateway:     gw,
		Registry:    opts.Registry,
		Channel:     ch,
		Coordinator: coord,
		Archive:     opts.Archive,
	}
}
