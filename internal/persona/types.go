package persona

import (
	"errors"
	"sort"
)

// #region errors

var (
	ErrEmptyRegistry  = errors.New("persona registry is empty")
	ErrDuplicateID    = errors.New("duplicate persona id")
	ErrEmptyID        = errors.New("persona id is empty")
	ErrUnknownDefault = errors.New("default persona not in registry")
	ErrInvalidWeight  = errors.New("invalid keyword weight")
)

// #endregion errors

// #region keyword

// Keyword is one scored term in a persona's keyword table.
type Keyword struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// #endregion keyword

// #region persona

// Persona is a mentor personality a conversation can be attributed to.
// Values handed out by a Registry are copies; the registry itself never changes.
type Persona struct {
	ID           string             `yaml:"id" json:"id"`
	DisplayName  string             `yaml:"display_name" json:"display_name"`
	Tagline      string             `yaml:"tagline" json:"tagline"`
	Domain       string             `yaml:"domain" json:"domain"`
	Prompt       string             `yaml:"prompt" json:"-"`
	Keywords     []Keyword          `yaml:"keywords" json:"-"`
	IntentBoost  map[string]float64 `yaml:"intent_boost" json:"-"`
	Bias         float64            `yaml:"bias" json:"-"`
	TraitWeights map[string]float64 `yaml:"trait_weights" json:"-"`
}

// Boost returns the intent boost for intent, 0 when the persona has none.
func (p Persona) Boost(intent string) float64 {
	if intent == "" {
		return 0
	}
	return p.IntentBoost[intent]
}

func (p Persona) clone() Persona {
	out := p
	out.Keywords = append([]Keyword(nil), p.Keywords...)
	out.IntentBoost = cloneWeights(p.IntentBoost)
	out.TraitWeights = cloneWeights(p.TraitWeights)
	return out
}

func cloneWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion persona

// #region catalog-file

// catalogFile is the on-disk YAML layout of a persona catalog.
type catalogFile struct {
	Default  string    `yaml:"default"`
	Personas []Persona `yaml:"personas"`
}

// #endregion catalog-file
