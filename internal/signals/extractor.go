package signals

import (
	"context"
	"math"
	"strings"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
)

// #region extractor

// Extractor derives an IntentSignal from a message. Category and confidence
// come from the classifier; explicit persona parsing is always local.
type Extractor struct {
	classifier IntentClassifier
	explicit   *ExplicitParser
	config     ExtractorConfig
}

// NewExtractor creates an Extractor. classifier may be nil (every signal is
// the degraded fallback).
func NewExtractor(classifier IntentClassifier, reg *persona.Registry, config ExtractorConfig) *Extractor {
	if config.FallbackCategory == "" {
		config.FallbackCategory = DefaultCategory
	}
	return &Extractor{classifier: classifier, explicit: NewExplicitParser(reg), config: config}
}

// #endregion extractor

// #region extract

// Extract never fails. Classifier errors and timeouts degrade to a
// zero-confidence signal in the fallback category.
func (e *Extractor) Extract(ctx context.Context, message string, history []Turn) IntentSignal {
	if strings.TrimSpace(message) == "" {
		return e.fallback("empty message")
	}

	sig := e.classify(ctx, message, history)
	// local parse wins over anything the classifier reported
	sig.ExplicitPersona = e.explicit.Parse(message)
	if sig.ExplicitPersona != "" {
		sig.Rationale = append(sig.Rationale, "explicit request for "+sig.ExplicitPersona)
	}
	return sig
}

func (e *Extractor) classify(ctx context.Context, message string, history []Turn) IntentSignal {
	if e.classifier == nil {
		return e.fallback("no classifier configured")
	}
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	type result struct {
		sig IntentSignal
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := e.classifier.Classify(ctx, message, history)
		done <- result{sig, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		return e.fallback("classifier timeout: " + ctx.Err().Error())
	}
	if r.err != nil {
		return e.fallback("classifier unavailable: " + r.err.Error())
	}

	sig := r.sig
	if sig.Category == "" {
		sig.Category = e.config.FallbackCategory
		sig.Defaulted = true
	}
	sig.Confidence = clamp(sig.Confidence)
	sig.Rationale = append([]string(nil), sig.Rationale...)
	return sig
}

func (e *Extractor) fallback(reason string) IntentSignal {
	return IntentSignal{
		Category:   e.config.FallbackCategory,
		Confidence: 0,
		Rationale:  []string{reason},
		Fallback:   true,
		Defaulted:  true,
	}
}

// #endregion extract

// #region helpers

// clamp restricts v to [0, 1]. NaN maps to 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
