package logging

import "time"

// #region routing-entry
// Entry is a single row in the routing_log table: the inputs and outcome of
// one routed turn.
type Entry struct {
	ID               int64     `json:"id"`
	TurnID           string    `json:"turn_id"`
	UserID           string    `json:"user_id"`
	VersionID        string    `json:"version_id,omitempty"`
	Action           string    `json:"action"` // "route" | "confirm" | "decline" | "reprompt" | "fresh"
	Message          string    `json:"message"`
	Intent           string    `json:"intent,omitempty"`
	IntentConfidence float64   `json:"intent_confidence"`
	Candidate        string    `json:"candidate,omitempty"`
	CandidateScore   float64   `json:"candidate_score"`
	ExplicitPersona  string    `json:"explicit_persona,omitempty"`
	Mode             string    `json:"mode"`
	Target           string    `json:"target"`
	Suggested        string    `json:"suggested,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	StageAfter       string    `json:"stage_after"`
	PersonaAfter     string    `json:"persona_after"`
	CreatedAt        time.Time `json:"created_at"`
}

// #endregion routing-entry
