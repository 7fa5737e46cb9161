package replay

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// helper: idle state on the default persona.
func freshState(reg *persona.Registry) state.RoutingState {
	return state.NewRoutingState("u1", reg.DefaultID(), t0)
}

// helper: a message turn the matcher gave to id with score.
func msg(turnID, text, id string, score float64, elapsed time.Duration) Turn {
	return Turn{
		TurnID:    turnID,
		Message:   text,
		Signal:    signals.IntentSignal{Category: "career", Confidence: 0.5},
		Candidate: matcher.Candidate{PersonaID: id, Score: score},
		Elapsed:   elapsed,
	}
}

func button(turnID string, a handoff.Action) Turn {
	return Turn{TurnID: turnID, Button: a}
}

func run(t *testing.T, cfg policy.Config, turns ...Turn) ([]Result, state.RoutingState) {
	t.Helper()
	reg := persona.DefaultRegistry()
	results, final, err := Replay(reg, cfg, freshState(reg), turns, t0)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != len(turns) {
		t.Fatalf("expected %d results, got %d", len(turns), len(results))
	}
	return results, final
}

// 1. Persistence: one strong turn stays, the second suggests.
func TestReplay_SuggestAfterPersistence(t *testing.T) {
	results, final := run(t, policy.DefaultConfig(),
		msg("t1", "resume help", "hera", 2.0, 0),
		msg("t2", "resume again", "hera", 2.0, time.Minute),
	)
	if results[0].Decision.Mode != policy.ModeStay {
		t.Errorf("turn 1: expected stay, got %s (%s)", results[0].Decision.Mode, results[0].Decision.Reason)
	}
	if results[1].Decision.Mode != policy.ModeSuggest || results[1].Suggested != "hera" {
		t.Errorf("turn 2: expected suggest hera, got %s %q", results[1].Decision.Mode, results[1].Suggested)
	}
	if final.Stage != state.StageAwaitingConfirmation {
		t.Errorf("expected awaiting confirmation, got %s", final.Stage)
	}
	if diff := cmp.Diff(state.Window{"hera", "hera"}, final.WinHistory); diff != "" {
		t.Errorf("win history (-want +got):\n%s", diff)
	}
	if !results[1].At.Equal(t0.Add(time.Minute)) {
		t.Errorf("expected simulated clock at +1m, got %s", results[1].At)
	}
}

// 2. Yes typed as a message confirms and adopts the suggested persona.
func TestReplay_ConfirmByMessage(t *testing.T) {
	results, final := run(t, policy.DefaultConfig(),
		msg("t1", "resume help", "hera", 2.0, 0),
		msg("t2", "resume again", "hera", 2.0, 0),
		Turn{TurnID: "t3", Message: "yes please"},
	)
	r := results[2]
	if r.Action != handoff.ActionConfirm || r.HandoffResult != handoff.ResultApplied {
		t.Fatalf("expected applied confirm, got %s/%s", r.Action, r.HandoffResult)
	}
	if final.CurrentPersona != "hera" || final.Stage != state.StageIdle {
		t.Errorf("expected hera idle, got %s %s", final.CurrentPersona, final.Stage)
	}
}

// 3. Decline by button starts the cooldown; the persona is quiet until it ends.
func TestReplay_DeclineCooldown(t *testing.T) {
	results, final := run(t, policy.DefaultConfig(),
		msg("t1", "resume help", "hera", 2.0, 0),
		msg("t2", "resume again", "hera", 2.0, 0),
		button("t3", handoff.ActionDecline),
		msg("t4", "resume once more", "hera", 2.0, 10*time.Minute),
		msg("t5", "resume yet again", "hera", 2.0, 25*time.Minute),
	)
	if !results[3].Decision.OnCooldown || results[3].Decision.Mode != policy.ModeStay {
		t.Errorf("turn 4: expected stay on cooldown, got %+v", results[3].Decision)
	}
	if results[4].Decision.Mode != policy.ModeSuggest {
		t.Errorf("turn 5: expected suggest after cooldown, got %s (%s)", results[4].Decision.Mode, results[4].Decision.Reason)
	}
	if _, ok := final.DeclineCooldowns["hera"]; ok {
		t.Error("expected expired cooldown to be pruned")
	}
}

// 4. Strict mode re-prompts and leaves the state alone.
func TestReplay_StrictReprompt(t *testing.T) {
	results, final := run(t, policy.DefaultConfig(),
		msg("t1", "resume help", "hera", 2.0, 0),
		msg("t2", "resume again", "hera", 2.0, 0),
		msg("t3", "what time is it", "athena", 4.0, 0),
	)
	if results[2].Action != handoff.ActionReprompt {
		t.Errorf("expected reprompt, got %s", results[2].Action)
	}
	if final.SuggestedPersona != "hera" || len(final.WinHistory) != 2 {
		t.Errorf("expected untouched pending state, got %+v", final)
	}
}

// 5. Auto-switch moves immediately when enabled and the score is high enough.
func TestReplay_AutoSwitch(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.AutoSwitchEnabled = true
	results, final := run(t, cfg,
		msg("t1", "resume help", "hera", 5.0, 0),
		msg("t2", "resume again", "hera", 5.0, 0),
	)
	if results[1].Decision.Mode != policy.ModeSwitch {
		t.Errorf("expected switch, got %s", results[1].Decision.Mode)
	}
	if final.CurrentPersona != "hera" || final.Stage != state.StageIdle {
		t.Errorf("expected hera idle, got %s %s", final.CurrentPersona, final.Stage)
	}
}

// 6. Buttons with nothing pending are explicit no-ops.
func TestReplay_IdleButtons(t *testing.T) {
	results, final := run(t, policy.DefaultConfig(),
		button("t1", handoff.ActionConfirm),
		button("t2", handoff.ActionDecline),
	)
	for _, r := range results {
		if r.HandoffResult != handoff.ResultNoHandoffPending {
			t.Errorf("%s: expected no_handoff_pending, got %s", r.TurnID, r.HandoffResult)
		}
		if r.Decision.Reason != "no handoff pending" {
			t.Errorf("%s: unexpected reason %q", r.TurnID, r.Decision.Reason)
		}
	}
	if final.CurrentPersona != "gaia" {
		t.Errorf("expected gaia, got %s", final.CurrentPersona)
	}
}

func TestReplay_RejectsNegativeElapsed(t *testing.T) {
	reg := persona.DefaultRegistry()
	_, _, err := Replay(reg, policy.DefaultConfig(), freshState(reg), []Turn{msg("t1", "x", "hera", 2, -time.Second)}, t0)
	if err == nil {
		t.Fatal("expected error for negative elapsed")
	}
}

func TestReplay_RejectsBadConfig(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.PersistenceN = 0
	reg := persona.DefaultRegistry()
	if _, _, err := Replay(reg, cfg, freshState(reg), nil, t0); err == nil {
		t.Fatal("expected config error")
	}
}

func TestSummarize(t *testing.T) {
	results, _ := run(t, policy.DefaultConfig(),
		msg("t1", "resume help", "hera", 2.0, 0),
		msg("t2", "resume again", "hera", 2.0, 0),
		msg("t3", "hmm", "hera", 2.0, 0),
		Turn{TurnID: "t4", Message: "yes"},
		button("t5", handoff.ActionDecline),
	)
	s := Summarize(results, []Expectation{
		{TurnID: "t1", Mode: "stay"},
		{TurnID: "t2", Mode: "suggest", Suggested: "hera"},
		{TurnID: "t3", Action: "reprompt"},
		{TurnID: "t4", Persona: "athena"},
	})

	want := Summary{
		TotalTurns:   5,
		Stays:        1,
		Suggests:     1,
		Confirms:     1,
		Declines:     1,
		Reprompts:    1,
		NoPending:    1,
		FinalPersona: "hera",
		FinalStage:   state.StageIdle,
		Mismatches:   []string{"turn t4: expected persona=athena, got hera (reason: handoff confirmed)"},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if s.Passed() {
		t.Error("expected Passed=false with a mismatch")
	}
}

func TestSummarize_TooFewResults(t *testing.T) {
	s := Summarize(nil, []Expectation{{TurnID: "t1"}})
	if s.Passed() {
		t.Fatal("expected mismatch for missing turns")
	}
}
