package signals

import (
	"context"
	"time"
)

// #region intent-signal

// IntentSignal is what the extractor derives from one message.
type IntentSignal struct {
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	Rationale       []string `json:"rationale,omitempty"`
	ExplicitPersona string   `json:"explicit_persona,omitempty"`

	// Fallback is set when the classifier was unavailable and Category is
	// the configured fallback.
	Fallback bool `json:"fallback,omitempty"`

	// Defaulted is set when nothing in the message selected Category.
	Defaulted bool `json:"defaulted,omitempty"`
}

// Degraded reports whether the signal is the zero-confidence fallback.
func (s IntentSignal) Degraded() bool {
	return s.Fallback
}

// RoutingIntent is the category the matcher may boost on. Fallback and
// defaulted categories only scope citations.
func (s IntentSignal) RoutingIntent() string {
	if s.Fallback || s.Defaulted {
		return ""
	}
	return s.Category
}

// #endregion intent-signal

// #region classifier-interface

// Turn is one line of conversation history handed to a classifier.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IntentClassifier abstracts category and confidence prediction so the
// extractor can delegate to a keyword table, a sidecar model, or a mock.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, history []Turn) (IntentSignal, error)
}

// #endregion classifier-interface

// #region config

// ExtractorConfig holds tuning knobs for signal extraction.
type ExtractorConfig struct {
	Timeout          time.Duration // per-call classifier budget
	FallbackCategory string        // category reported when the classifier is unavailable
}

// DefaultExtractorConfig returns sensible defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Timeout:          2 * time.Second,
		FallbackCategory: DefaultCategory,
	}
}

// #endregion config
