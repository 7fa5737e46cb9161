package replay

import (
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
)

// ErrNoEntries is returned when there is nothing to export.
var ErrNoEntries = errors.New("no routing log entries")

// #region export

// ExportFixture turns a user's routing log (oldest first) into a replay
// fixture whose expectations are the outcomes that were logged. The start
// state is the given persona with empty history, so logs that begin mid
// conversation may not reproduce exactly.
func ExportFixture(entries []logging.Entry, description, startPersona string, cfg policy.Config) (*Fixture, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	f := &Fixture{
		Description: description,
		Config:      FromPolicyConfig(cfg),
		Start:       FixtureStart{UserID: entries[0].UserID, Current: startPersona},
		Turns:       make([]FixtureTurn, 0, len(entries)),
		Expected:    make([]Expectation, 0, len(entries)),
	}

	prev := entries[0].CreatedAt
	for _, e := range entries {
		ft := FixtureTurn{
			TurnID:           e.TurnID,
			Message:          e.Message,
			Candidate:        e.Candidate,
			Score:            e.CandidateScore,
			Intent:           e.Intent,
			IntentConfidence: e.IntentConfidence,
			ExplicitPersona:  e.ExplicitPersona,
			Degraded:         e.Reason == policy.ReasonDegraded,
		}
		if !e.CreatedAt.IsZero() && !prev.IsZero() && e.CreatedAt.After(prev) {
			ft.ElapsedSeconds = e.CreatedAt.Sub(prev).Seconds()
		}
		if !e.CreatedAt.IsZero() {
			prev = e.CreatedAt
		}

		// button presses are logged with the action but no message
		action := handoff.Action(e.Action)
		if strings.TrimSpace(e.Message) == "" && (action == handoff.ActionConfirm || action == handoff.ActionDecline) {
			ft = FixtureTurn{TurnID: e.TurnID, Button: e.Action, ElapsedSeconds: ft.ElapsedSeconds}
		}

		f.Turns = append(f.Turns, ft)
		f.Expected = append(f.Expected, Expectation{
			TurnID:    e.TurnID,
			Action:    e.Action,
			Mode:      e.Mode,
			Target:    e.Target,
			Suggested: e.Suggested,
			Stage:     e.StageAfter,
			Persona:   e.PersonaAfter,
		})
	}
	return f, nil
}

// FromPolicyConfig is the inverse of FixtureConfig.ToPolicyConfig.
func FromPolicyConfig(cfg policy.Config) FixtureConfig {
	fc := FixtureConfig{
		SuggestThreshold:    lo.ToPtr(cfg.SuggestThreshold),
		AutoSwitchThreshold: lo.ToPtr(cfg.AutoSwitchThreshold),
		IntentFloor:         lo.ToPtr(cfg.IntentFloor),
		PersistenceN:        lo.ToPtr(cfg.PersistenceN),
		WindowM:             lo.ToPtr(cfg.WindowM),
		AutoSwitchEnabled:   cfg.AutoSwitchEnabled,
		PendingMode:         string(cfg.PendingMode),
	}
	if cfg.CooldownDuration > 0 {
		fc.Cooldown = cfg.CooldownDuration.String()
	}
	return fc
}

// #endregion export
