package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// #region registry

// Registry is the validated, immutable persona catalog. Declaration order is
// preserved and used as the deterministic tie-break order.
type Registry struct {
	personas  []Persona
	index     map[string]int
	defaultID string
}

// NewRegistry validates personas and builds a registry. Every error here is a
// startup configuration error.
func NewRegistry(defaultID string, personas ...Persona) (*Registry, error) {
	if len(personas) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{
		personas: make([]Persona, 0, len(personas)),
		index:    make(map[string]int, len(personas)),
	}
	for _, p := range personas {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" {
			return nil, ErrEmptyID
		}
		if _, dup := r.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		for _, kw := range p.Keywords {
			if kw.Weight < 0 || strings.TrimSpace(kw.Term) == "" {
				return nil, fmt.Errorf("%w: persona %s term %q weight %.2f", ErrInvalidWeight, p.ID, kw.Term, kw.Weight)
			}
		}
		if p.DisplayName == "" {
			p.DisplayName = strings.ToUpper(p.ID[:1]) + p.ID[1:]
		}
		c := p.clone()
		for i := range c.Keywords {
			c.Keywords[i].Term = strings.ToLower(c.Keywords[i].Term)
		}
		r.index[p.ID] = len(r.personas)
		r.personas = append(r.personas, c)
	}

	defaultID = strings.ToLower(strings.TrimSpace(defaultID))
	if _, ok := r.index[defaultID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, defaultID)
	}
	r.defaultID = defaultID
	return r, nil
}

// LoadRegistry reads a YAML persona catalog from path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona catalog %s: %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse persona catalog %s: %w", path, err)
	}
	reg, err := NewRegistry(f.Default, f.Personas...)
	if err != nil {
		return nil, fmt.Errorf("persona catalog %s: %w", path, err)
	}
	return reg, nil
}

// #endregion registry

// #region accessors

// DefaultID returns the router persona every new conversation starts with.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// Default returns the router persona.
func (r *Registry) Default() Persona {
	return r.personas[r.index[r.defaultID]].clone()
}

// Has reports whether id names a registered persona.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Get returns the persona with the given id.
func (r *Registry) Get(id string) (Persona, bool) {
	i, ok := r.index[id]
	if !ok {
		return Persona{}, false
	}
	return r.personas[i].clone(), true
}

// Resolve returns the persona for id, falling back to the default persona for
// unknown ids. The second return value is a rationale when a fallback happened.
func (r *Registry) Resolve(id string) (Persona, string) {
	if p, ok := r.Get(id); ok {
		return p, ""
	}
	return r.Default(), fmt.Sprintf("unknown persona %q, falling back to %s", id, r.defaultID)
}

// Lookup finds a persona by id or display name, case-insensitively.
func (r *Registry) Lookup(name string) (Persona, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if p, ok := r.Get(name); ok {
		return p, true
	}
	for _, p := range r.personas {
		if strings.ToLower(p.DisplayName) == name {
			return p.clone(), true
		}
	}
	return Persona{}, false
}

// All returns every persona in declaration order.
func (r *Registry) All() []Persona {
	return lo.Map(r.personas, func(p Persona, _ int) Persona { return p.clone() })
}

// IDs returns persona ids in declaration order.
func (r *Registry) IDs() []string {
	return lo.Map(r.personas, func(p Persona, _ int) string { return p.ID })
}

// Len returns the number of registered personas.
func (r *Registry) Len() int {
	return len(r.personas)
}

// Traits returns the sorted union of trait names across personas.
func (r *Registry) Traits() []string {
	var traits []string
	for _, p := range r.personas {
		traits = append(traits, lo.Keys(p.TraitWeights)...)
	}
	traits = lo.Uniq(traits)
	sort.Strings(traits)
	return traits
}

// #endregion accessors
