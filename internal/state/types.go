package state

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a user has no stored record.
var ErrNotFound = errors.New("not found")

// #region stage

// Stage is the handoff stage of a user's conversation.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageAwaitingConfirmation Stage = "awaiting_confirmation"
)

// #endregion stage

// #region citation

// Citation references an indexed campus resource used to ground a reply.
type Citation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Snippet   string `json:"snippet,omitempty"`
	Published string `json:"published,omitempty"`
}

// #endregion citation

// #region suggestion-context

// SuggestionContext snapshots the turn that produced a handoff suggestion so
// the original request can be resumed after confirmation.
type SuggestionContext struct {
	OriginatingMessage string     `json:"originating_message"`
	Intent             string     `json:"intent"`
	IntentConfidence   float64    `json:"intent_confidence"`
	Citations          []Citation `json:"citations,omitempty"`
	Rationale          []string   `json:"rationale,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (c *SuggestionContext) clone() *SuggestionContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Citations = append([]Citation(nil), c.Citations...)
	out.Rationale = append([]string(nil), c.Rationale...)
	return &out
}

// #endregion suggestion-context

// #region routing-state

// RoutingState is the per-user routing record. It is owned by the handoff
// state machine; everything else treats it as read-only.
type RoutingState struct {
	UserID           string               `json:"user_id"`
	CurrentPersona   string               `json:"current_persona"`
	Stage            Stage                `json:"stage"`
	SuggestedPersona string               `json:"suggested_persona,omitempty"`
	Suggestion       *SuggestionContext   `json:"suggestion,omitempty"`
	WinHistory       Window               `json:"win_history"`
	DeclineCooldowns map[string]time.Time `json:"decline_cooldowns"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// NewRoutingState returns the first-contact state: default persona, idle,
// empty history and cooldowns.
func NewRoutingState(userID, defaultPersona string, now time.Time) RoutingState {
	return RoutingState{
		UserID:           userID,
		CurrentPersona:   defaultPersona,
		Stage:            StageIdle,
		WinHistory:       Window{},
		DeclineCooldowns: map[string]time.Time{},
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy so transitions never alias their input.
func (s RoutingState) Clone() RoutingState {
	out := s
	out.WinHistory = append(Window{}, s.WinHistory...)
	out.DeclineCooldowns = make(map[string]time.Time, len(s.DeclineCooldowns))
	for k, v := range s.DeclineCooldowns {
		out.DeclineCooldowns[k] = v
	}
	out.Suggestion = s.Suggestion.clone()
	return out
}

// Pending reports whether a handoff suggestion awaits the user's answer.
func (s RoutingState) Pending() bool {
	return s.Stage == StageAwaitingConfirmation
}

// OnCooldown reports whether persona was declined less than cooldown ago.
// Expired entries are ignored, not required to be deleted.
func (s RoutingState) OnCooldown(persona string, now time.Time, cooldown time.Duration) bool {
	at, ok := s.DeclineCooldowns[persona]
	if !ok {
		return false
	}
	return now.Sub(at) < cooldown
}

// PruneCooldowns drops expired cooldown entries in place.
func (s *RoutingState) PruneCooldowns(now time.Time, cooldown time.Duration) {
	for id, at := range s.DeclineCooldowns {
		if now.Sub(at) >= cooldown {
			delete(s.DeclineCooldowns, id)
		}
	}
}

// ClearSuggestion drops any pending suggestion and returns to idle.
func (s *RoutingState) ClearSuggestion() {
	s.Stage = StageIdle
	s.SuggestedPersona = ""
	s.Suggestion = nil
}

// Validate checks the structural invariants of the record against window size m.
func (s RoutingState) Validate(m int) error {
	if s.CurrentPersona == "" {
		return fmt.Errorf("routing state %s: empty current persona", s.UserID)
	}
	switch s.Stage {
	case StageIdle:
		if s.SuggestedPersona != "" || s.Suggestion != nil {
			return fmt.Errorf("routing state %s: suggestion set while idle", s.UserID)
		}
	case StageAwaitingConfirmation:
		if s.SuggestedPersona == "" || s.Suggestion == nil {
			return fmt.Errorf("routing state %s: awaiting confirmation without suggestion", s.UserID)
		}
	default:
		return fmt.Errorf("routing state %s: unknown stage %q", s.UserID, s.Stage)
	}
	if m > 0 && len(s.WinHistory) > m {
		return fmt.Errorf("routing state %s: win history %d exceeds window %d", s.UserID, len(s.WinHistory), m)
	}
	return nil
}

// #endregion routing-state

// #region routing-version

// RoutingVersion is one persisted snapshot of a user's routing state.
type RoutingVersion struct {
	VersionID string
	ParentID  string
	State     RoutingState
	CreatedAt time.Time
}

// #endregion routing-version

// #region user

// User is a student profile.
type User struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name,omitempty"`
	Profile         map[string]any `json:"profile,omitempty"`
	SelectedPersona string         `json:"selected_persona,omitempty"`
	QuizResults     map[string]any `json:"quiz_results,omitempty"`
	IntentsSeen     []string       `json:"intents_seen"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// #endregion user

// #region chat-message

// ChatMessage is one message of a user's conversation, filed under the
// persona that handled it.
type ChatMessage struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Role      string     `json:"role"` // "user" | "assistant"
	Content   string     `json:"content"`
	Persona   string     `json:"persona"`
	Intent    string     `json:"intent,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// #endregion chat-message
