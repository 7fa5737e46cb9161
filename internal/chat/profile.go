package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// ErrUnknownPersona is returned when a profile update names a persona the
// registry does not have.
var ErrUnknownPersona = errors.New("unknown persona")

// #region profile

// Profile is a user's stored profile plus their live routing summary.
type Profile struct {
	User           state.User  `json:"user"`
	CurrentPersona string      `json:"current_persona"`
	Stage          state.Stage `json:"stage"`
	Suggested      string      `json:"suggested,omitempty"`
}

// EnsureProfile creates or refreshes the user from a verified identity and
// returns the profile.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, name string) (Profile, error) {
	u, err := s.store.UpsertUser(ctx, userID, email, name)
	if err != nil {
		return Profile{}, err
	}
	st, err := s.State(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		User:           u,
		CurrentPersona: st.CurrentPersona,
		Stage:          st.Stage,
		Suggested:      st.SuggestedPersona,
	}, nil
}

// ProfileUpdate is a partial profile change. Nil or empty fields are left
// as stored.
type ProfileUpdate struct {
	Profile         map[string]any `json:"profile,omitempty"`
	SelectedPersona string         `json:"selected_persona,omitempty"`
}

// UpdateProfile applies u and returns the refreshed profile. The selected
// persona is a preference; it does not move routing.
func (s *Service) UpdateProfile(ctx context.Context, userID string, u ProfileUpdate) (Profile, error) {
	if u.SelectedPersona != "" && !s.registry.Has(u.SelectedPersona) {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPersona, u.SelectedPersona)
	}
	if _, err := s.store.UpsertUser(ctx, userID, "", ""); err != nil {
		return Profile{}, err
	}
	if u.Profile != nil {
		if err := s.store.SetProfile(ctx, userID, u.Profile); err != nil {
			return Profile{}, fmt.Errorf("store profile: %w", err)
		}
	}
	if u.SelectedPersona != "" {
		if err := s.store.SetSelectedPersona(ctx, userID, u.SelectedPersona); err != nil {
			return Profile{}, fmt.Errorf("store selected persona: %w", err)
		}
	}
	return s.EnsureProfile(ctx, userID, "", "")
}

// #endregion profile

// #region quiz

// SubmitQuiz matches quiz answers to a persona and stores the result on the
// profile. Routing state is left alone; the quiz persona is a preference.
func (s *Service) SubmitQuiz(ctx context.Context, userID string, answers []int) (persona.QuizResult, error) {
	res := s.registry.MatchQuiz(answers)
	if _, err := s.store.UpsertUser(ctx, userID, "", ""); err != nil {
		return persona.QuizResult{}, err
	}
	if err := s.store.SetQuizResults(ctx, userID, map[string]any{
		"answers":      answers,
		"persona_id":   res.PersonaID,
		"score":        res.Score,
		"rationale":    res.Rationale,
		"trait_totals": res.TraitTotals,
	}); err != nil {
		return persona.QuizResult{}, fmt.Errorf("store quiz: %w", err)
	}
	if err := s.store.SetSelectedPersona(ctx, userID, res.PersonaID); err != nil {
		return persona.QuizResult{}, fmt.Errorf("store selected persona: %w", err)
	}
	return res, nil
}

// #endregion quiz
