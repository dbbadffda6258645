// ABOUTME: Persona definitions and keyword rule matching for canned replies
// ABOUTME: Rules are keyed by persona identifier, never by an agent's display name

package persona

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// GenericFallback is the reply for agents without a recognised persona.
const GenericFallback = "I find that idea intriguing. Could you tell me more about your thoughts on this matter?"

// ErrDuplicatePersona is returned when registering an identifier twice.
var ErrDuplicatePersona = errors.New("persona already registered")

// Predicate reports whether a rule applies to the user's text.
type Predicate func(text string) bool

// Keywords matches when the text contains any of the words, ignoring case.
func Keywords(words ...string) Predicate {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}
	return func(text string) bool {
		text = strings.ToLower(text)
		for _, w := range lowered {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
}

// Rule pairs a predicate with the reply used when it matches.
type Rule struct {
	Match Predicate
	Reply string
}

// Persona is the behavioural identity behind an agent: its defaults for a
// new agent plus an ordered rule table.
type Persona struct {
	ID          string
	Name        string
	Avatar      string
	Description string
	Personality string
	Greeting    string
	Rules       []Rule
	Fallback    string
}

// Respond returns the reply of the first matching rule, or the fallback.
// A nil persona answers with GenericFallback.
func (p *Persona) Respond(text string) string {
	if p == nil {
		return GenericFallback
	}
	for _, rule := range p.Rules {
		if rule.Match != nil && rule.Match(text) {
			return rule.Reply
		}
	}
	if p.Fallback != "" {
		return p.Fallback
	}
	return GenericFallback
}

// Registry indexes personas by identifier.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Persona
	order []string
}

// NewRegistry creates a registry holding the given personas.
// It panics on duplicate identifiers, like regexp.MustCompile for static tables.
func NewRegistry(personas ...*Persona) *Registry {
	r := &Registry{byID: make(map[string]*Persona)}
	for _, p := range personas {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a persona.
func (r *Registry) Register(p *Persona) error {
	if p.ID == "" {
		return errors.New("persona id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePersona, p.ID)
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Lookup returns the persona with the given identifier.
func (r *Registry) Lookup(id string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	return p, ok
}

// Resolve finds a persona whose identifier or name equals name, ignoring
// case and surrounding space. Used once, when an agent is created without
// an explicit persona.
func (r *Registry) Resolve(name string) (*Persona, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		p := r.byID[id]
		if strings.EqualFold(p.ID, name) || strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// List returns personas in registration order.
func (r *Registry) List() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
