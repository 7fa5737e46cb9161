package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustPolicy(t *testing.T, cfg Config) *Policy {
	t.Helper()
	p, err := NewPolicy(cfg)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func input(current, candidate string, score float64, history ...string) Input {
	st := state.NewRoutingState("u1", current, now)
	st.WinHistory = append(state.Window{}, history...)
	return Input{
		Current:   current,
		Candidate: matcher.Candidate{PersonaID: candidate, Score: score},
		State:     st,
		Now:       now,
	}
}

// #region config-tests

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero-n", func(c *Config) { c.PersistenceN = 0 }},
		{"zero-m", func(c *Config) { c.WindowM = 0 }},
		{"n-exceeds-m", func(c *Config) { c.PersistenceN = 6 }},
		{"floor-above-one", func(c *Config) { c.IntentFloor = 1.5 }},
		{"negative-threshold", func(c *Config) { c.SuggestThreshold = -1 }},
		{"zero-cooldown", func(c *Config) { c.CooldownDuration = 0 }},
		{"auto-below-suggest", func(c *Config) { c.AutoSwitchEnabled = true; c.AutoSwitchThreshold = 1 }},
		{"pending-mode", func(c *Config) { c.PendingMode = "maybe" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if _, err := NewPolicy(cfg); err == nil {
				t.Fatal("NewPolicy accepted invalid config")
			}
		})
	}
}

// #endregion config-tests

// #region decide-tests

func TestDecide(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	tests := []struct {
		name      string
		in        Input
		mode      Mode
		target    string
		suggested string
	}{
		{"same-persona-stays", input("hera", "hera", 9), ModeStay, "hera", ""},
		{"empty-proposal-stays", input("gaia", "", 0), ModeStay, "gaia", ""},
		{"first-win-not-persistent", input("gaia", "hera", 5), ModeStay, "gaia", ""},
		{"second-win-suggests", input("gaia", "hera", 2, "hera"), ModeSuggest, "gaia", "hera"},
		{"weak-score-stays", input("gaia", "hera", 1.5, "hera"), ModeStay, "gaia", ""},
		{"threshold-boundary-inclusive", input("gaia", "hera", 1.6, "hera"), ModeSuggest, "gaia", "hera"},
		{"history-of-other-persona", input("gaia", "hera", 3, "athena", "athena"), ModeStay, "gaia", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.in)
			if d.Mode != tt.mode || d.Target != tt.target || d.Suggested != tt.suggested {
				t.Fatalf("got %s/%s/%s (%s), want %s/%s/%s",
					d.Mode, d.Target, d.Suggested, d.Reason, tt.mode, tt.target, tt.suggested)
			}
			if d.Reason == "" {
				t.Error("expected reason")
			}
		})
	}
}

func TestDecideIntentFloorGate(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	in := input("gaia", "hera", 0.5, "hera")
	if d := p.Decide(in); d.Mode != ModeStay {
		t.Fatalf("expected stay below floor, got %s", d.Mode)
	}
	in.IntentConfidence = 0.65
	if d := p.Decide(in); d.Mode != ModeSuggest {
		t.Fatalf("expected suggest at floor, got %s (%s)", d.Mode, d.Reason)
	}
}

func TestDecideExplicitSkipsPersistence(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	in := input("gaia", "athena", 0.2)
	in.ExplicitPersona = "hera"

	d := p.Decide(in)
	if d.Mode != ModeSuggest || d.Suggested != "hera" {
		t.Fatalf("expected suggest hera, got %s/%s (%s)", d.Mode, d.Suggested, d.Reason)
	}
	if !d.Explicit || d.Proposed != "hera" {
		t.Fatalf("expected explicit proposal, got %+v", d)
	}
}

func TestDecideDegradedStays(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	in := input("gaia", "athena", 4.0, "athena", "athena")
	in.Degraded = true

	d := p.Decide(in)
	if d.Mode != ModeStay || d.Target != "gaia" || d.Reason != ReasonDegraded {
		t.Fatalf("expected degraded stay, got %+v", d)
	}
	if d.Proposed != "" {
		t.Fatalf("degraded turn must not propose, got %q", d.Proposed)
	}

	in.ExplicitPersona = "hera"
	if d := p.Decide(in); d.Mode != ModeSuggest || d.Suggested != "hera" {
		t.Fatalf("explicit request should survive degraded signal, got %+v", d)
	}
}

func TestDecideExplicitRespectsCooldown(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	in := input("gaia", "hera", 3, "hera")
	in.ExplicitPersona = "hera"
	in.State.DeclineCooldowns["hera"] = now.Add(-time.Minute)

	d := p.Decide(in)
	if d.Mode != ModeStay || !d.OnCooldown {
		t.Fatalf("expected cooldown stay, got %+v", d)
	}
}

func TestDecideCooldownExpires(t *testing.T) {
	cfg := DefaultConfig()
	p := mustPolicy(t, cfg)
	in := input("gaia", "hera", 3, "hera")
	in.State.DeclineCooldowns["hera"] = now.Add(-cfg.CooldownDuration + time.Second)
	if d := p.Decide(in); d.Mode != ModeStay {
		t.Fatalf("expected stay during cooldown, got %s", d.Mode)
	}
	in.State.DeclineCooldowns["hera"] = now.Add(-cfg.CooldownDuration)
	if d := p.Decide(in); d.Mode != ModeSuggest {
		t.Fatalf("expected suggest once cooldown elapsed, got %s (%s)", d.Mode, d.Reason)
	}
}

func TestDecideAutoSwitch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSwitchEnabled = true
	p := mustPolicy(t, cfg)

	d := p.Decide(input("gaia", "hera", 4.5, "hera"))
	if d.Mode != ModeSwitch || d.Target != "hera" {
		t.Fatalf("expected switch to hera, got %s/%s", d.Mode, d.Target)
	}
	d = p.Decide(input("gaia", "hera", 4.4, "hera"))
	if d.Mode != ModeSuggest {
		t.Fatalf("expected suggest below auto threshold, got %s", d.Mode)
	}

	// explicit request for a persona the matcher did not favor always confirms
	in := input("gaia", "athena", 9, "athena")
	in.ExplicitPersona = "hera"
	if d := p.Decide(in); d.Mode != ModeSuggest || d.Suggested != "hera" {
		t.Fatalf("expected suggest hera, got %s/%s", d.Mode, d.Suggested)
	}
}

func TestDecideNeverSwitchesWhenDisabled(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	for _, score := range []float64{0, 1.6, 4.5, 100} {
		for _, hist := range [][]string{nil, {"hera"}, {"hera", "hera", "hera", "hera"}} {
			in := input("gaia", "hera", score, hist...)
			in.IntentConfidence = 1
			if d := p.Decide(in); d.Mode == ModeSwitch {
				t.Fatalf("switch with auto-switch disabled: score %.1f hist %v", score, hist)
			}
		}
	}
}

func TestDecidePersistenceWindowEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowM = 3
	p := mustPolicy(t, cfg)
	// hera is the oldest entry and falls out once this turn is pushed
	d := p.Decide(input("gaia", "hera", 3, "hera", "athena", "athena"))
	if d.Mode != ModeStay || d.Wins != 1 {
		t.Fatalf("expected stay with 1 win, got %s with %d", d.Mode, d.Wins)
	}
}

func TestDecideDeterministicAndPure(t *testing.T) {
	p := mustPolicy(t, DefaultConfig())
	in := input("gaia", "hera", 2, "hera")
	in.State.DeclineCooldowns["athena"] = now
	before := in.State.Clone()

	first := p.Decide(in)
	for i := 0; i < 10; i++ {
		if d := p.Decide(in); d != first {
			t.Fatalf("non-deterministic decision: %+v vs %+v", d, first)
		}
	}
	if len(in.State.WinHistory) != len(before.WinHistory) || len(in.State.DeclineCooldowns) != 1 {
		t.Fatal("Decide mutated state")
	}
}

// #endregion decide-tests
