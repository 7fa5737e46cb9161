package signals

import (
	"context"
	"fmt"
	"strings"
)

// DefaultCategory is reported when no keyword matches.
const DefaultCategory = "academics"

// #region keyword-table

type categoryKeywords struct {
	category string
	keywords []string
}

// table order is the tie-break order.
var defaultKeywordTable = []categoryKeywords{
	{"academics", []string{"class", "course", "study", "exam", "professor", "grade", "tutor", "research"}},
	{"career", []string{"internship", "job", "career", "resume", "interview", "handshake", "co-op", "salary"}},
	{"events", []string{"event", "workshop", "club", "meetup", "hackathon", "seminar", "career fair"}},
	{"wellbeing", []string{"stress", "wellness", "mental", "therapy", "health", "burnout", "sleep", "balance"}},
}

// Categories lists the categories the keyword classifier can report.
func Categories() []string {
	out := make([]string, len(defaultKeywordTable))
	for i, c := range defaultKeywordTable {
		out[i] = c.category
	}
	return out
}

// #endregion keyword-table

// #region keyword-classifier

// KeywordClassifier counts keyword substrings per category and picks the
// category with the most hits.
type KeywordClassifier struct {
	table []categoryKeywords
}

// NewKeywordClassifier returns the classifier over the built-in table.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{table: defaultKeywordTable}
}

// Classify never fails. Confidence is 0.35 + 0.15 per hit, capped at 0.95.
func (k *KeywordClassifier) Classify(_ context.Context, message string, _ []Turn) (IntentSignal, error) {
	text := strings.ToLower(message)
	best := DefaultCategory
	var bestHits []string

	for _, c := range k.table {
		var hits []string
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > len(bestHits) {
			best = c.category
			bestHits = hits
		}
	}

	var rationale []string
	if len(bestHits) == 0 {
		rationale = []string{"no strong keyword match; defaulting to " + DefaultCategory}
	} else {
		for _, kw := range bestHits {
			rationale = append(rationale, fmt.Sprintf("matched '%s'", kw))
		}
	}

	confidence := 0.35 + 0.15*float64(len(bestHits))
	if confidence > 0.95 {
		confidence = 0.95
	}
	return IntentSignal{Category: best, Confidence: confidence, Rationale: rationale, Defaulted: len(bestHits) == 0}, nil
}

// #endregion keyword-classifier
