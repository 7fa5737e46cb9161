package persona

// #region default-catalog

// DefaultID is the router persona of the built-in catalog.
const DefaultID = "gaia"

// DefaultRegistry returns the built-in catalog: Gaia routes, Athena covers
// academics, Aphrodite well-being, Hera careers.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultID, defaultPersonas()...)
	if err != nil {
		panic("persona: built-in catalog invalid: " + err.Error())
	}
	return reg
}

func defaultPersonas() []Persona {
	return []Persona{
		{
			ID:          "gaia",
			DisplayName: "Gaia",
			Tagline:     "Your guide to the right mentor.",
			Domain:      "Orientation & Routing",
			Prompt: "You are Gaia, mother of the pantheon, a warm guide who helps NJIT students " +
				"figure out what they need and which mentor can help them best.",
			Keywords:    weighted(1.0, "not sure", "general", "overview", "help me decide", "where do i start", "anything"),
			IntentBoost: map[string]float64{},
			Bias:        0,
			TraitWeights: map[string]float64{
				"nurturing": 1, "wisdom": 1,
			},
		},
		{
			ID:          "athena",
			DisplayName: "Athena",
			Tagline:     "Strategic wisdom for academics and research.",
			Domain:      "Academics & Wisdom",
			Prompt: "You are Athena, goddess of wisdom and strategy, a calm mentor who " +
				"guides NJIT scholars through coursework, research, and complex decisions. " +
				"Cite verifiable campus resources that back every recommendation.",
			Keywords: weighted(1.5,
				"study", "exam", "class", "course", "research", "homework", "professor",
				"grades", "tutoring", "academic", "library",
			),
			IntentBoost:  map[string]float64{"academics": 3.0, "events": 0.5},
			Bias:         1.0,
			TraitWeights: map[string]float64{"wisdom": 3, "strategy": 2, "independence": 1},
		},
		{
			ID:          "aphrodite",
			DisplayName: "Aphrodite",
			Tagline:     "Well-being, community, and balance.",
			Domain:      "Well-being & Self-care",
			Prompt: "You are Aphrodite, goddess of care and connection, helping students nurture " +
				"well-being, friendships, and a sustainable NJIT experience. " +
				"Offer accessible resources for wellness, counseling, and community.",
			Keywords: weighted(1.3,
				"stress", "wellness", "balance", "mental", "health", "friend", "community",
				"counsel", "support group", "mindfulness", "self-care",
			),
			IntentBoost:  map[string]float64{"wellbeing": 3.0, "events": 1.0},
			Bias:         0.8,
			TraitWeights: map[string]float64{"nurturing": 3, "independence": 1},
		},
		{
			ID:          "hera",
			DisplayName: "Hera",
			Tagline:     "Leadership, internships, and professional polish.",
			Domain:      "Career & Leadership",
			Prompt: "You are Hera, goddess of leadership and resolve, championing professional " +
				"growth for NJIT students. Offer decisive guidance for internships, career " +
				"fairs, networking, and campus leadership programs.",
			Keywords: weighted(1.4,
				"career", "internship", "job", "resume", "interview", "co-op", "leadership",
				"network", "handshake", "career fair", "professional",
			),
			IntentBoost:  map[string]float64{"career": 3.0, "events": 1.5},
			Bias:         1.2,
			TraitWeights: map[string]float64{"strategy": 2, "independence": 2, "wisdom": 1},
		},
	}
}

func weighted(weight float64, terms ...string) []Keyword {
	out := make([]Keyword, len(terms))
	for i, t := range terms {
		out[i] = Keyword{Term: t, Weight: weight}
	}
	return out
}

// #endregion default-catalog
