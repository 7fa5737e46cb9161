package matcher

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
)

// #region embedder-interface

// Embedder abstracts the embedding backend so VectorProvider can be tested
// without a network.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion embedder-interface

// #region vector-provider

// VectorProvider implements EmbeddingProvider with cosine similarity between
// the message and each persona's prompt. Persona vectors are computed once.
type VectorProvider struct {
	embedder Embedder
	registry *persona.Registry

	mu       sync.Mutex
	personas map[string][]float32
	lastText string
	lastVec  []float32
}

// NewVectorProvider creates a provider over the registry's persona prompts.
func NewVectorProvider(embedder Embedder, reg *persona.Registry) *VectorProvider {
	return &VectorProvider{
		embedder: embedder,
		registry: reg,
		personas: make(map[string][]float32),
	}
}

// Warm embeds every persona prompt up front. Failures are returned but leave
// the provider usable; missing vectors are retried on demand.
func (v *VectorProvider) Warm(ctx context.Context) error {
	for _, p := range v.registry.All() {
		if _, err := v.personaVector(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Similarity returns the cosine similarity of text and the persona's prompt.
func (v *VectorProvider) Similarity(ctx context.Context, text, personaID string) (float64, error) {
	pv, err := v.personaVector(ctx, personaID)
	if err != nil {
		return 0, err
	}
	tv, err := v.textVector(ctx, text)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(tv, pv), nil
}

func (v *VectorProvider) personaVector(ctx context.Context, id string) ([]float32, error) {
	v.mu.Lock()
	vec, ok := v.personas[id]
	v.mu.Unlock()
	if ok {
		return vec, nil
	}

	p, found := v.registry.Get(id)
	if !found {
		return nil, fmt.Errorf("unknown persona %q", id)
	}
	vec, err := v.embedder.Embed(ctx, p.Prompt)
	if err != nil {
		return nil, fmt.Errorf("embed persona %s: %w", id, err)
	}

	v.mu.Lock()
	v.personas[id] = vec
	v.mu.Unlock()
	return vec, nil
}

// textVector keeps the last message vector; a tie-break asks for the same
// text once per tied persona.
func (v *VectorProvider) textVector(ctx context.Context, text string) ([]float32, error) {
	v.mu.Lock()
	if v.lastVec != nil && v.lastText == text {
		vec := v.lastVec
		v.mu.Unlock()
		return vec, nil
	}
	v.mu.Unlock()

	vec, err := v.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed message: %w", err)
	}

	v.mu.Lock()
	v.lastText, v.lastVec = text, vec
	v.mu.Unlock()
	return vec, nil
}

// #endregion vector-provider

// #region helpers

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// #endregion helpers
