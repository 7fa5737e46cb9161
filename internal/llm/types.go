package llm

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// ErrEmptyReply is returned when a provider answers with no text.
var ErrEmptyReply = errors.New("empty reply from model")

// #region generator

// Generator produces a persona reply from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// #endregion generator

// #region prompt-input

// PromptInput is everything a reply prompt is assembled from.
type PromptInput struct {
	Persona   persona.Persona
	Citations []state.Citation
	History   []state.ChatMessage
	Message   string
}

// #endregion prompt-input

// #region config

// Config selects and parameterizes a provider.
type Config struct {
	Provider       string // "genai" | "anthropic" | "none"
	Model          string
	EmbeddingModel string
	APIKey         string
	MaxTokens      int64
}

// DefaultConfig returns a config with no provider; replies use the fallback text.
func DefaultConfig() Config {
	return Config{
		Provider:       "none",
		Model:          "gemini-2.0-flash",
		EmbeddingModel: "gemini-embedding-001",
		MaxTokens:      512,
	}
}

// #endregion config
