// Package registry implements the agent registry: a mapping from agent
// identifier to its published card with capability-set discovery.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/logging"
)

// InMemoryRegistry is a process-local core.Registry. Re-registering an
// existing identifier replaces the whole card atomically; the original
// registration instant is retained so discovery ordering among equal
// matches never reshuffles on re-register.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	cards  map[string]core.AgentCard
	now    func() time.Time
	logger logging.Logger
}

// Options configures an InMemoryRegistry.
type Options struct {
	Clock  func() time.Time
	Logger logging.Logger
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry(optFns ...func(o *Options)) *InMemoryRegistry {
	opts := Options{Clock: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryRegistry{cards: make(map[string]core.AgentCard), now: opts.Clock, logger: opts.Logger}
}

// Register validates and stores the card, replacing any previous card for
// the same identifier in one step.
func (r *InMemoryRegistry) Register(card core.AgentCard) error {
	if err := card.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cards[card.ID]; ok {
		card.Registered = existing.Registered
	} else {
		card.Registered = r.now().UTC()
	}
	r.cards[card.ID] = card
	r.logger.Debug("registered agent card", "agent_id", card.ID, "skills", len(card.Skills))
	return nil
}

// Discover returns every agent whose skill set is a superset of required,
// ordered by descending match count then ascending registration time.
func (r *InMemoryRegistry) Discover(required core.CapabilitySet) ([]core.AgentCard, error) {
	if required.Len() == 0 {
		return nil, core.NewError(core.KindInvalidInput, "registry.discover", "empty capability set")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	type match struct {
		card  core.AgentCard
		count int
	}
	matches := make([]match, 0, len(r.cards))
	for _, card := range r.cards {
		skills := card.SkillSet()
		if !skills.ContainsAll(required) {
			continue
		}
		matches = append(matches, match{card: card, count: skills.Intersection(required)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].count != matches[j].count {
			return matches[i].count > matches[j].count
		}
		return matches[i].card.Registered.Before(matches[j].card.Registered)
	})
	out := make([]core.AgentCard, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.card)
	}
	return out, nil
}

// Resolve returns the card for an agent id or KindNotFound.
func (r *InMemoryRegistry) Resolve(id string) (core.AgentCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card, ok := r.cards[id]
	if !ok {
		return core.AgentCard{}, core.NewError(core.KindNotFound, "registry.resolve", id)
	}
	return card, nil
}

// Len returns the number of registered agents.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}
