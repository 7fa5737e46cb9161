package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
)

// #region candidate

// Candidate is the persona the matcher favors for one message.
type Candidate struct {
	PersonaID string   `json:"persona_id"`
	Score     float64  `json:"score"`
	Rationale []string `json:"rationale,omitempty"`
}

// #endregion candidate

// #region provider-interface

// EmbeddingProvider scores how close text is to a persona. Used only to break
// ties between equally scored personas.
type EmbeddingProvider interface {
	Similarity(ctx context.Context, text, personaID string) (float64, error)
}

// #endregion provider-interface

// #region matcher

// Matcher scores every registry persona against a message.
type Matcher struct {
	registry *persona.Registry
	provider EmbeddingProvider
}

// New creates a Matcher. provider may be nil (ties resolve by registry order).
func New(reg *persona.Registry, provider EmbeddingProvider) *Matcher {
	return &Matcher{registry: reg, provider: provider}
}

// #endregion matcher

// #region match

// Match returns the highest scoring persona. It never returns an empty
// candidate: with no signal at all the first persona in declaration order wins.
func (m *Matcher) Match(ctx context.Context, message, intent string) Candidate {
	scores := m.Scores(message, intent)

	top := scores[0].Score
	for _, c := range scores[1:] {
		if c.Score > top {
			top = c.Score
		}
	}
	var tied []Candidate
	for _, c := range scores {
		if c.Score == top {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	if m.provider != nil {
		if best, ok := m.tieBreak(ctx, message, tied); ok {
			best.Rationale = append(best.Rationale, "embedding tie-breaker")
			return best
		}
	}
	best := tied[0]
	best.Rationale = append(best.Rationale, fmt.Sprintf("tie among %d personas; declaration order", len(tied)))
	return best
}

// Scores returns every persona's score in registry order.
func (m *Matcher) Scores(message, intent string) []Candidate {
	text := strings.ToLower(message)
	all := m.registry.All()
	out := make([]Candidate, 0, len(all))

	for _, p := range all {
		c := Candidate{PersonaID: p.ID}
		for _, kw := range p.Keywords {
			if strings.Contains(text, kw.Term) {
				c.Score += kw.Weight
				c.Rationale = append(c.Rationale, fmt.Sprintf("matched keyword '%s' +%g", kw.Term, kw.Weight))
			}
		}
		if intent != "" {
			if boost := p.Boost(intent); boost != 0 {
				c.Score += boost
				c.Rationale = append(c.Rationale, fmt.Sprintf("intent '%s' boost +%g", intent, boost))
			}
		}
		c.Score += p.Bias
		out = append(out, c)
	}
	return out
}

// tieBreak asks the provider for each tied persona. Any provider error
// abandons the tie-break.
func (m *Matcher) tieBreak(ctx context.Context, message string, tied []Candidate) (Candidate, bool) {
	bestIdx := -1
	bestSim := 0.0
	for i, c := range tied {
		sim, err := m.provider.Similarity(ctx, message, c.PersonaID)
		if err != nil {
			return Candidate{}, false
		}
		if bestIdx < 0 || sim > bestSim {
			bestIdx = i
			bestSim = sim
		}
	}
	return tied[bestIdx], true
}

// #endregion match
