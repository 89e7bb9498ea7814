package core

import "time"

// CardCapabilities are the protocol capability flags an agent declares.
type CardCapabilities struct {
	Streaming        bool `json:"streaming"`
	PushNotification bool `json:"push_notification"`
	StateHistory     bool `json:"state_history"`
}

// AgentCard is the published descriptor of an agent's identity, skills and
// reachable endpoint. Owned by the registry; immutable once registered
// except through whole-card re-registration.
type AgentCard struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Skills       []string         `json:"skills"`
	Endpoint     string           `json:"endpoint"`
	Capabilities CardCapabilities `json:"capabilities"`
	Registered   time.Time        `json:"registered,omitempty"`
}

// SkillSet returns the declared skill tags as a capability set.
func (c AgentCard) SkillSet() CapabilitySet { return NewCapabilitySet(c.Skills...) }

// Validate checks the card for the fields every registration requires.
func (c AgentCard) Validate() error {
	if c.ID == "" {
		return NewError(KindInvalidInput, "card.validate", "missing agent id")
	}
	if c.Name == "" {
		return NewError(KindInvalidInput, "card.validate", c.ID+": missing name")
	}
	if c.Endpoint == "" {
		return NewError(KindInvalidInput, "card.validate", c.ID+": missing endpoint")
	}
	return nil
}
