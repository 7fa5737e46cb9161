package policy

import (
	"fmt"
	"strings"
)

// #region policy

// Policy decides stay, suggest, or switch for a turn. It holds no state.
type Policy struct {
	config Config
}

// NewPolicy validates config and returns a Policy.
func NewPolicy(config Config) (*Policy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Policy{config: config}, nil
}

// Config returns the thresholds the policy was built with.
func (p *Policy) Config() Config {
	return p.config
}

// #endregion policy

// #region proposed

// Proposed is the persona a turn argues for: an explicit request wins over the
// matcher's candidate.
func Proposed(in Input) string {
	if id := strings.TrimSpace(in.ExplicitPersona); id != "" {
		return id
	}
	return in.Candidate.PersonaID
}

// #endregion proposed

// #region decide

// ReasonDegraded is the stay reason for a turn whose classifier was unavailable.
const ReasonDegraded = "degraded signal"

// Decide is deterministic and side-effect free. It reads the win history and
// cooldowns of in.State but never modifies them.
func (p *Policy) Decide(in Input) Decision {
	proposed := Proposed(in)
	explicit := strings.TrimSpace(in.ExplicitPersona) != ""

	if proposed == "" {
		return Decision{Mode: ModeStay, Target: in.Current, Reason: "no proposal"}
	}
	// a degraded turn neither moves routing nor counts toward persistence
	if in.Degraded && !explicit {
		return Decision{Mode: ModeStay, Target: in.Current, Reason: ReasonDegraded}
	}
	if proposed == in.Current {
		return Decision{
			Mode:     ModeStay,
			Target:   in.Current,
			Proposed: proposed,
			Reason:   "proposal is current persona",
			Explicit: explicit,
		}
	}

	wins := in.State.WinHistory.Push(proposed, p.config.WindowM).Count(proposed)
	onCooldown := in.State.OnCooldown(proposed, in.Now, p.config.CooldownDuration)

	// score counts only when the matcher itself favored the proposal
	score := 0.0
	if in.Candidate.PersonaID == proposed {
		score = in.Candidate.Score
	}

	d := Decision{
		Mode:       ModeStay,
		Target:     in.Current,
		Proposed:   proposed,
		Wins:       wins,
		OnCooldown: onCooldown,
		Explicit:   explicit,
	}

	strong := score >= p.config.SuggestThreshold || in.IntentConfidence >= p.config.IntentFloor || explicit
	persistent := explicit || wins >= p.config.PersistenceN

	switch {
	case !strong:
		d.Reason = fmt.Sprintf("weak signal: score %.2f < %.2f and confidence %.2f < %.2f",
			score, p.config.SuggestThreshold, in.IntentConfidence, p.config.IntentFloor)
		return d
	case !persistent:
		d.Reason = fmt.Sprintf("not persistent: %s won %d of last %d turns, need %d",
			proposed, wins, p.config.WindowM, p.config.PersistenceN)
		return d
	case onCooldown:
		d.Reason = fmt.Sprintf("%s declined within %s", proposed, p.config.CooldownDuration)
		return d
	}

	if p.config.AutoSwitchEnabled && score >= p.config.AutoSwitchThreshold {
		d.Mode = ModeSwitch
		d.Target = proposed
		d.Reason = fmt.Sprintf("auto-switch: score %.2f >= %.2f", score, p.config.AutoSwitchThreshold)
		return d
	}

	d.Mode = ModeSuggest
	d.Suggested = proposed
	if explicit {
		d.Reason = "explicit request for " + proposed
	} else {
		d.Reason = fmt.Sprintf("suggest %s: %d wins, score %.2f", proposed, wins, score)
	}
	return d
}

// #endregion decide
