package handoff

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region machine

// Machine owns every transition of a RoutingState. All methods are pure
// functions of their arguments and the clock; they never modify their input.
type Machine struct {
	registry *persona.Registry
	policy   *policy.Policy
	clock    func() time.Time
}

// NewMachine creates a Machine. clock may be nil (time.Now).
func NewMachine(reg *persona.Registry, pol *policy.Policy, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{registry: reg, policy: pol, clock: clock}
}

// NewState returns the first-contact state for userID.
func (m *Machine) NewState(userID string) state.RoutingState {
	return state.NewRoutingState(userID, m.registry.DefaultID(), m.clock())
}

func (m *Machine) config() policy.Config {
	return m.policy.Config()
}

// #endregion machine

// #region normalize

// Normalize repairs a stored state that no longer fits the registry or the
// window size. Each repair adds a note.
func (m *Machine) Normalize(st state.RoutingState) (state.RoutingState, []string) {
	next := st.Clone()
	var notes []string

	if p, why := m.registry.Resolve(next.CurrentPersona); why != "" {
		notes = append(notes, why)
		next.CurrentPersona = p.ID
	}

	switch next.Stage {
	case state.StageAwaitingConfirmation:
		if next.Suggestion == nil || !m.registry.Has(next.SuggestedPersona) {
			notes = append(notes, fmt.Sprintf("dropped invalid pending suggestion %q", next.SuggestedPersona))
			next.ClearSuggestion()
		}
	case state.StageIdle:
		if next.SuggestedPersona != "" || next.Suggestion != nil {
			notes = append(notes, "cleared stale suggestion on idle state")
			next.ClearSuggestion()
		}
	default:
		notes = append(notes, fmt.Sprintf("unknown stage %q reset to idle", next.Stage))
		next.ClearSuggestion()
	}

	if w := m.config().WindowM; len(next.WinHistory) > w {
		next.WinHistory = append(state.Window{}, next.WinHistory[len(next.WinHistory)-w:]...)
		notes = append(notes, fmt.Sprintf("trimmed win history to %d", w))
	}
	return next, notes
}

// #endregion normalize

// #region apply

// Apply transitions an idle state by a policy decision. The evaluated
// proposal is pushed onto the win history on every turn, including stays.
func (m *Machine) Apply(st state.RoutingState, d policy.Decision, tc TurnContext) state.RoutingState {
	return m.applyAt(st, d, tc, m.clock())
}

func (m *Machine) applyAt(st state.RoutingState, d policy.Decision, tc TurnContext, now time.Time) state.RoutingState {
	cfg := m.config()
	next := st.Clone()
	next.PruneCooldowns(now, cfg.CooldownDuration)

	if d.Proposed != "" {
		next.WinHistory = next.WinHistory.Push(d.Proposed, cfg.WindowM)
	}

	switch d.Mode {
	case policy.ModeSuggest:
		next.Stage = state.StageAwaitingConfirmation
		next.SuggestedPersona = d.Suggested
		next.Suggestion = &state.SuggestionContext{
			OriginatingMessage: tc.Message,
			Intent:             tc.Intent,
			IntentConfidence:   tc.IntentConfidence,
			Citations:          append([]state.Citation(nil), tc.Citations...),
			Rationale:          append(append([]string(nil), tc.Rationale...), d.Reason),
			CreatedAt:          now,
		}
	case policy.ModeSwitch:
		next.CurrentPersona = d.Target
		next.ClearSuggestion()
	}

	next.UpdatedAt = now
	return next
}

// #endregion apply

// #region confirm-decline

// Confirm adopts the suggested persona and returns the request that produced
// the suggestion. With nothing pending it returns ResultNoHandoffPending and
// an unchanged copy.
func (m *Machine) Confirm(st state.RoutingState) (state.RoutingState, *state.SuggestionContext, Result) {
	next := st.Clone()
	if !next.Pending() {
		return next, nil, ResultNoHandoffPending
	}
	target := next.SuggestedPersona
	resumed := next.Suggestion

	next.CurrentPersona = target
	next.ClearSuggestion()
	delete(next.DeclineCooldowns, target)
	next.UpdatedAt = m.clock()
	return next, resumed, ResultApplied
}

// Decline drops the suggestion and starts the persona's cooldown.
func (m *Machine) Decline(st state.RoutingState) (state.RoutingState, Result) {
	next := st.Clone()
	if !next.Pending() {
		return next, ResultNoHandoffPending
	}
	now := m.clock()
	next.DeclineCooldowns[next.SuggestedPersona] = now
	next.ClearSuggestion()
	next.UpdatedAt = now
	return next, ResultApplied
}

// #endregion confirm-decline

// #region pending

// Pending classifies message against the state's stage. Callers use it to
// skip signal extraction for yes/no replies.
func (m *Machine) Pending(st state.RoutingState, message string) Action {
	if !st.Pending() {
		return ActionRoute
	}
	switch signals.ParseReply(message) {
	case signals.ReplyYes:
		return ActionConfirm
	case signals.ReplyNo:
		return ActionDecline
	}
	if m.config().PendingMode == policy.PendingClear {
		return ActionFresh
	}
	return ActionReprompt
}

// #endregion pending

// #region route-turn

// RouteTurn handles one user message end to end: pending replies first, then
// decide and apply. It is total; every input yields an outcome.
func (m *Machine) RouteTurn(userID string, st state.RoutingState, in TurnInput) TurnOutcome {
	if st.UserID == "" {
		st.UserID = userID
	}
	st, notes := m.Normalize(st)
	action := m.Pending(st, in.Message)

	switch action {
	case ActionConfirm:
		next, resumed, res := m.Confirm(st)
		return TurnOutcome{
			State:    next,
			Decision: policy.Decision{Mode: policy.ModeStay, Target: next.CurrentPersona, Reason: "handoff confirmed"},
			Action:   action,
			Result:   res,
			Resumed:  resumed,
			Notes:    notes,
		}
	case ActionDecline:
		next, res := m.Decline(st)
		return TurnOutcome{
			State:    next,
			Decision: policy.Decision{Mode: policy.ModeStay, Target: next.CurrentPersona, Reason: "handoff declined"},
			Action:   action,
			Result:   res,
			Notes:    notes,
		}
	case ActionReprompt:
		return TurnOutcome{
			State: st,
			Decision: policy.Decision{
				Mode:      policy.ModeStay,
				Target:    st.CurrentPersona,
				Suggested: st.SuggestedPersona,
				Reason:    "awaiting confirmation",
			},
			Action: action,
			Notes:  notes,
		}
	case ActionFresh:
		notes = append(notes, fmt.Sprintf("cleared pending suggestion %s", st.SuggestedPersona))
		st.ClearSuggestion()
	}

	explicit := in.Signal.ExplicitPersona
	if explicit != "" && !m.registry.Has(explicit) {
		notes = append(notes, fmt.Sprintf("ignored unknown explicit persona %q", explicit))
		explicit = ""
	}
	candidate := in.Candidate
	if candidate.PersonaID != "" && !m.registry.Has(candidate.PersonaID) {
		notes = append(notes, fmt.Sprintf("ignored unknown candidate %q", candidate.PersonaID))
		candidate.PersonaID = ""
		candidate.Score = 0
	}

	now := m.clock()
	d := m.policy.Decide(policy.Input{
		Current:          st.CurrentPersona,
		Candidate:        candidate,
		IntentConfidence: in.Signal.Confidence,
		Degraded:         in.Signal.Degraded(),
		ExplicitPersona:  explicit,
		Message:          in.Message,
		State:            st,
		Now:              now,
	})

	rationale := append(append([]string(nil), in.Signal.Rationale...), candidate.Rationale...)
	next := m.applyAt(st, d, TurnContext{
		Message:          in.Message,
		Intent:           in.Signal.Category,
		IntentConfidence: in.Signal.Confidence,
		Citations:        in.Citations,
		Rationale:        rationale,
	}, now)

	return TurnOutcome{State: next, Decision: d, Action: action, Notes: notes}
}

// #endregion route-turn
