package handoff

import (
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region result

// Result reports whether confirm or decline did anything. Neither case is an
// error.
type Result string

const (
	ResultApplied          Result = "applied"
	ResultNoHandoffPending Result = "no_handoff_pending"
)

// #endregion result

// #region pending-action

// Action is how a turn is handled before any routing happens.
type Action string

const (
	ActionRoute    Action = "route"    // no suggestion pending, route normally
	ActionConfirm  Action = "confirm"  // pending and the user said yes
	ActionDecline  Action = "decline"  // pending and the user said no
	ActionReprompt Action = "reprompt" // pending, strict mode, neither yes nor no
	ActionFresh    Action = "fresh"    // pending, clear mode: drop suggestion and route
)

// NeedsSignals reports whether the turn will be routed, so the caller must
// extract signals, match, and retrieve before calling RouteTurn.
func (a Action) NeedsSignals() bool {
	return a == ActionRoute || a == ActionFresh
}

// #endregion pending-action

// #region turn

// TurnContext is what a suggestion snapshots for later resumption.
type TurnContext struct {
	Message          string
	Intent           string
	IntentConfidence float64
	Citations        []state.Citation
	Rationale        []string
}

// TurnInput carries the collaborator outputs for one routed turn.
type TurnInput struct {
	Message   string
	Signal    signals.IntentSignal
	Candidate matcher.Candidate
	Citations []state.Citation
}

// TurnOutcome is the full result of RouteTurn.
type TurnOutcome struct {
	State    state.RoutingState
	Decision policy.Decision
	Action   Action
	Result   Result                   // set for confirm and decline
	Resumed  *state.SuggestionContext // the original request, after confirm
	Notes    []string                 // anomalies resolved on the way
}

// Changed reports whether the active persona differs from before the turn.
func (o TurnOutcome) Changed(before string) bool {
	return o.State.CurrentPersona != before
}

// #endregion turn
