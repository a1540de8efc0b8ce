package models

// Capability identifies a content-generation skill
type Capability string

const (
	CapabilityGrammar      Capability = "grammar"
	CapabilityVocabulary   Capability = "vocabulary"
	CapabilityConversation Capability = "conversation"
)

// Capabilities lists all known capabilities
var Capabilities = []Capability{CapabilityGrammar, CapabilityVocabulary, CapabilityConversation}

// Valid reports whether the capability is known
func (c Capability) Valid() bool {
	switch c {
	case CapabilityGrammar, CapabilityVocabulary, CapabilityConversation:
		return true
	}
	return false
}

// Topic is a teachable unit: a named subject served by one capability.
// Examples: {"dative_case", grammar}, {"compound_nouns", vocabulary}.
type Topic struct {
	Name       string     `json:"name"`
	Capability Capability `json:"capability"`
}

// Key returns the canonical identity of the topic, used for progress
// records and per-topic locking.
func (t Topic) Key() string {
	return string(t.Capability) + "/" + t.Name
}

func (t Topic) String() string {
	return t.Key()
}
