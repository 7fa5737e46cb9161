package replay

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region types

// Turn is one recorded user turn with the collaborator outputs it produced.
type Turn struct {
	TurnID    string
	Message   string
	Signal    signals.IntentSignal
	Candidate matcher.Candidate
	Button    handoff.Action // ActionConfirm or ActionDecline for a UI press; empty for a message
	Elapsed   time.Duration  // simulated time since the previous turn
}

// Result captures the outcome of replaying one turn.
type Result struct {
	TurnID        string
	Action        handoff.Action
	Decision      policy.Decision
	HandoffResult handoff.Result
	Stage         state.Stage
	Persona       string
	Suggested     string
	Notes         []string
	At            time.Time
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns   int
	Stays        int
	Suggests     int
	Switches     int
	Confirms     int
	Declines     int
	Reprompts    int
	Fresh        int
	NoPending    int
	Mismatches   []string
	FinalPersona string
	FinalStage   state.Stage
}

// Passed reports whether every expectation held.
func (s Summary) Passed() bool {
	return len(s.Mismatches) == 0
}

// #endregion types

// #region replay

// Replay runs turns through the policy and handoff machine in memory with a
// simulated clock starting at start. It never touches a store.
func Replay(reg *persona.Registry, cfg policy.Config, st state.RoutingState, turns []Turn, start time.Time) ([]Result, state.RoutingState, error) {
	pol, err := policy.NewPolicy(cfg)
	if err != nil {
		return nil, state.RoutingState{}, err
	}
	now := start
	m := handoff.NewMachine(reg, pol, func() time.Time { return now })

	results := make([]Result, 0, len(turns))
	for i, t := range turns {
		if t.Elapsed < 0 {
			return nil, state.RoutingState{}, fmt.Errorf("turn %d (%s): negative elapsed %s", i, t.TurnID, t.Elapsed)
		}
		now = now.Add(t.Elapsed)

		var out handoff.TurnOutcome
		switch t.Button {
		case handoff.ActionConfirm, handoff.ActionDecline:
			out = press(m, st, t.Button)
		default:
			out = m.RouteTurn(st.UserID, st, handoff.TurnInput{
				Message:   t.Message,
				Signal:    t.Signal,
				Candidate: t.Candidate,
			})
		}
		st = out.State

		results = append(results, Result{
			TurnID:        t.TurnID,
			Action:        out.Action,
			Decision:      out.Decision,
			HandoffResult: out.Result,
			Stage:         st.Stage,
			Persona:       st.CurrentPersona,
			Suggested:     st.SuggestedPersona,
			Notes:         out.Notes,
			At:            now,
		})
	}
	return results, st, nil
}

// press applies a confirm or decline button outside the message path.
func press(m *handoff.Machine, st state.RoutingState, button handoff.Action) handoff.TurnOutcome {
	st, notes := m.Normalize(st)
	out := handoff.TurnOutcome{Action: button, Notes: notes}
	reason := "handoff declined"
	if button == handoff.ActionConfirm {
		out.State, out.Resumed, out.Result = m.Confirm(st)
		reason = "handoff confirmed"
	} else {
		out.State, out.Result = m.Decline(st)
	}
	if out.Result == handoff.ResultNoHandoffPending {
		reason = "no handoff pending"
	}
	out.Decision = policy.Decision{Mode: policy.ModeStay, Target: out.State.CurrentPersona, Reason: reason}
	return out
}

// #endregion replay

// #region summarize

// Summarize counts outcomes and collects mismatches against expected.
// Expectations are matched by position; empty fields are not checked.
func Summarize(results []Result, expected []Expectation) Summary {
	s := Summary{TotalTurns: len(results)}
	for _, r := range results {
		switch r.Action {
		case handoff.ActionConfirm:
			s.Confirms++
		case handoff.ActionDecline:
			s.Declines++
		case handoff.ActionReprompt:
			s.Reprompts++
		case handoff.ActionFresh:
			s.Fresh++
		}
		if r.HandoffResult == handoff.ResultNoHandoffPending {
			s.NoPending++
		}
		if r.Action == handoff.ActionRoute || r.Action == handoff.ActionFresh {
			switch r.Decision.Mode {
			case policy.ModeStay:
				s.Stays++
			case policy.ModeSuggest:
				s.Suggests++
			case policy.ModeSwitch:
				s.Switches++
			}
		}
	}
	if n := len(results); n > 0 {
		s.FinalPersona = results[n-1].Persona
		s.FinalStage = results[n-1].Stage
	}

	if len(expected) > len(results) {
		s.Mismatches = append(s.Mismatches, fmt.Sprintf("expected %d turns, replayed %d", len(expected), len(results)))
	}
	for i, e := range expected {
		if i >= len(results) {
			break
		}
		s.Mismatches = append(s.Mismatches, e.check(results[i])...)
	}
	return s
}

// #endregion summarize
