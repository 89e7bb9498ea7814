package core

// Registry maps agent identifiers to their published cards. Registration is
// whole-card replace only; partial updates are not supported so readers
// never observe a torn card.
type Registry interface {
	// Register stores or atomically replaces the card after validation.
	Register(card AgentCard) error
	// Discover returns every agent whose declared skill set is a superset
	// of the required capabilities, ordered by descending number of matching
	// capabilities then by registration time (stable tie-break). An empty
	// requirement set is rejected as invalid input.
	Discover(required CapabilitySet) ([]AgentCard, error)
	// Resolve returns the card for an agent id or KindNotFound.
	Resolve(id string) (AgentCard, error)
}
