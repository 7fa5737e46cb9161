package llm

import (
	"context"
	"fmt"
	"strings"
)

// #region new

// NewGenerator builds the configured provider. Provider "none" (or empty)
// returns a nil Generator; callers then always use FallbackReply.
func NewGenerator(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "genai", "gemini":
		gen, err := NewGenAIGenerator(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case "anthropic", "claude":
		gen, err := NewAnthropicGenerator(cfg.APIKey, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// #endregion new

// #region respond

// Respond generates a reply for in, degrading to FallbackReply when gen is
// nil or fails. The error is returned for logging only; the text is always
// usable.
func Respond(ctx context.Context, gen Generator, in PromptInput) (string, error) {
	if gen == nil {
		return FallbackReply(in.Persona), nil
	}
	text, err := gen.Generate(ctx, BuildPrompt(in))
	if err != nil {
		return FallbackReply(in.Persona), err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackReply(in.Persona), ErrEmptyReply
	}
	return text, nil
}

// #endregion respond
