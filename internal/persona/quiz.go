package persona

import "fmt"

// #region quiz

// QuizTraits is the cyclic answer-to-trait map of the onboarding quiz:
// answer i contributes to QuizTraits[i % len(QuizTraits)].
var QuizTraits = []string{"wisdom", "strategy", "independence", "nurturing", "leadership"}

// QuizResult is the persona recommended by the onboarding quiz.
type QuizResult struct {
	PersonaID   string             `json:"persona_id"`
	Score       float64            `json:"score"`
	Rationale   []string           `json:"rationale"`
	TraitTotals map[string]float64 `json:"trait_totals"`
}

// MatchQuiz scores personas against quiz answers through their trait weights.
// The first persona in declaration order wins ties; no answers yields the
// default persona.
func (r *Registry) MatchQuiz(answers []int) QuizResult {
	totals := make(map[string]float64, len(QuizTraits))
	for _, t := range QuizTraits {
		totals[t] = 0
	}
	if len(answers) == 0 {
		return QuizResult{
			PersonaID:   r.defaultID,
			Rationale:   []string{"no quiz answers, keeping " + r.defaultID},
			TraitTotals: totals,
		}
	}
	for i, v := range answers {
		totals[QuizTraits[i%len(QuizTraits)]] += float64(v)
	}

	best := QuizResult{Score: -1, TraitTotals: totals}
	for _, p := range r.personas {
		var score float64
		var debug []string
		for _, trait := range sortedKeys(p.TraitWeights) {
			weight := p.TraitWeights[trait]
			contribution := totals[trait] * weight
			if contribution != 0 {
				debug = append(debug, fmt.Sprintf("%sx%g -> %g", trait, weight, contribution))
			}
			score += contribution
		}
		if score > best.Score {
			best.PersonaID = p.ID
			best.Score = score
			best.Rationale = debug
		}
	}
	return best
}

// #endregion quiz
