package chat

import (
	"context"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region collaborators

// SessionStore is the persistence the chat service needs. *state.Store
// satisfies it.
type SessionStore interface {
	Lock(userID string) func()
	Get(ctx context.Context, userID string) (state.RoutingState, error)
	Put(ctx context.Context, userID string, st state.RoutingState) (string, error)
	UpsertUser(ctx context.Context, id, email, name string) (state.User, error)
	GetUser(ctx context.Context, id string) (state.User, error)
	AppendIntents(ctx context.Context, id string, intents ...string) error
	SetSelectedPersona(ctx context.Context, id, persona string) error
	SetQuizResults(ctx context.Context, id string, results map[string]any) error
	SetProfile(ctx context.Context, id string, profile map[string]any) error
	AddMessage(ctx context.Context, m state.ChatMessage) (state.ChatMessage, error)
	History(ctx context.Context, userID, persona string, limit int) ([]state.ChatMessage, error)
}

// DecisionLogger records one provenance row per turn. *logging.Recorder
// satisfies it.
type DecisionLogger interface {
	Record(ctx context.Context, entry logging.Entry) error
}

// Searcher retrieves citations for a message. retrieval.Searcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query, intent string) ([]state.Citation, error)
}

// #endregion collaborators

// #region response

// Trace explains how a turn was routed.
type Trace struct {
	TurnID    string               `json:"turn_id"`
	VersionID string               `json:"version_id"`
	Action    handoff.Action       `json:"action"`
	Signal    signals.IntentSignal `json:"signal"`
	Candidate matcher.Candidate    `json:"candidate"`
	Notes     []string             `json:"notes,omitempty"`
	Degraded  []string             `json:"degraded,omitempty"`
}

// Response is the reply to one chat turn or handoff action.
type Response struct {
	Message   string           `json:"message"`
	Persona   string           `json:"persona"`
	Intent    string           `json:"intent,omitempty"`
	Citations []state.Citation `json:"citations"`
	Decision  policy.Decision  `json:"decision"`
	Result    handoff.Result   `json:"result,omitempty"`
	Stage     state.Stage      `json:"stage"`
	Suggested string           `json:"suggested,omitempty"`
	Trace     Trace            `json:"trace"`
}

// #endregion response
