package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Registry    string        `json:"registry,omitempty"` // persona YAML, relative to the fixture; empty = built-in
	Config      FixtureConfig `json:"config"`
	Start       FixtureStart  `json:"start"`
	Turns       []FixtureTurn `json:"turns"`
	Expected    []Expectation `json:"expected"`

	dir string
}

// FixtureConfig mirrors policy.Config with JSON-friendly durations. Absent
// fields take the production defaults; an explicit zero is kept.
type FixtureConfig struct {
	SuggestThreshold    *float64 `json:"suggest_threshold,omitempty"`
	AutoSwitchThreshold *float64 `json:"auto_switch_threshold,omitempty"`
	IntentFloor         *float64 `json:"intent_floor,omitempty"`
	PersistenceN        *int     `json:"persistence_n,omitempty"`
	WindowM             *int     `json:"window_m,omitempty"`
	Cooldown            string   `json:"cooldown,omitempty"`
	AutoSwitchEnabled   bool     `json:"auto_switch_enabled"`
	PendingMode         string   `json:"pending_mode,omitempty"`
}

// FixtureStart is the routing state before the first turn.
type FixtureStart struct {
	UserID     string   `json:"user_id"`
	Current    string   `json:"current"`
	WinHistory []string `json:"win_history,omitempty"`
}

// FixtureTurn is one recorded turn. Button is "confirm" or "decline" for a UI
// press; the collaborator fields are ignored for presses.
type FixtureTurn struct {
	TurnID           string  `json:"turn_id"`
	Message          string  `json:"message"`
	Candidate        string  `json:"candidate,omitempty"`
	Score            float64 `json:"score,omitempty"`
	Intent           string  `json:"intent,omitempty"`
	IntentConfidence float64 `json:"intent_confidence,omitempty"`
	ExplicitPersona  string  `json:"explicit_persona,omitempty"`
	Degraded         bool    `json:"degraded,omitempty"` // classifier was unavailable
	Button           string  `json:"button,omitempty"`
	ElapsedSeconds   float64 `json:"elapsed_seconds,omitempty"`
}

// Expectation is the expected outcome of one turn. Empty fields are not
// checked.
type Expectation struct {
	TurnID    string `json:"turn_id"`
	Action    string `json:"action,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Target    string `json:"target,omitempty"`
	Suggested string `json:"suggested,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Persona   string `json:"persona,omitempty"`
	Result    string `json:"result,omitempty"`
}

func (e Expectation) check(r Result) []string {
	var out []string
	field := func(name, want, got string) {
		if want != "" && want != got {
			out = append(out, fmt.Sprintf("turn %s: expected %s=%s, got %s (reason: %s)", e.TurnID, name, want, got, r.Decision.Reason))
		}
	}
	if e.TurnID != "" && e.TurnID != r.TurnID {
		out = append(out, fmt.Sprintf("turn %s: replayed turn_id %s", e.TurnID, r.TurnID))
	}
	field("action", e.Action, string(r.Action))
	field("mode", e.Mode, string(r.Decision.Mode))
	field("target", e.Target, r.Decision.Target)
	field("suggested", e.Suggested, r.Suggested)
	field("stage", e.Stage, string(r.Stage))
	field("persona", e.Persona, r.Persona)
	field("result", e.Result, string(r.HandoffResult))
	return out
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// Save writes the fixture as indented JSON.
func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// LoadRegistry returns the persona registry the fixture was recorded against.
func (f *Fixture) LoadRegistry() (*persona.Registry, error) {
	if f.Registry == "" {
		return persona.DefaultRegistry(), nil
	}
	path := f.Registry
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, path)
	}
	return persona.LoadRegistry(path)
}

// ToPolicyConfig overlays the fixture's thresholds on the production defaults.
func (fc FixtureConfig) ToPolicyConfig() (policy.Config, error) {
	cfg := policy.DefaultConfig()
	overlay(&cfg.SuggestThreshold, fc.SuggestThreshold)
	overlay(&cfg.AutoSwitchThreshold, fc.AutoSwitchThreshold)
	overlay(&cfg.IntentFloor, fc.IntentFloor)
	overlay(&cfg.PersistenceN, fc.PersistenceN)
	overlay(&cfg.WindowM, fc.WindowM)
	if fc.Cooldown != "" {
		d, err := time.ParseDuration(fc.Cooldown)
		if err != nil {
			return policy.Config{}, fmt.Errorf("fixture cooldown %q: %w", fc.Cooldown, err)
		}
		cfg.CooldownDuration = d
	}
	cfg.AutoSwitchEnabled = fc.AutoSwitchEnabled
	if fc.PendingMode != "" {
		cfg.PendingMode = policy.PendingMode(fc.PendingMode)
	}
	return cfg, cfg.Validate()
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// ToState builds the starting routing state. An empty current persona means
// the registry default.
func (s FixtureStart) ToState(reg *persona.Registry, now time.Time) state.RoutingState {
	current := s.Current
	if current == "" {
		current = reg.DefaultID()
	}
	st := state.NewRoutingState(s.UserID, current, now)
	st.WinHistory = append(state.Window{}, s.WinHistory...)
	return st
}

// ToTurn converts a FixtureTurn to a replay Turn.
func (ft FixtureTurn) ToTurn() (Turn, error) {
	t := Turn{
		TurnID:  ft.TurnID,
		Message: ft.Message,
		Elapsed: time.Duration(ft.ElapsedSeconds * float64(time.Second)),
	}
	switch strings.ToLower(ft.Button) {
	case "":
	case string(handoff.ActionConfirm):
		t.Button = handoff.ActionConfirm
		return t, nil
	case string(handoff.ActionDecline):
		t.Button = handoff.ActionDecline
		return t, nil
	default:
		return Turn{}, fmt.Errorf("turn %s: unknown button %q", ft.TurnID, ft.Button)
	}
	t.Signal = signals.IntentSignal{
		Category:        ft.Intent,
		Confidence:      ft.IntentConfidence,
		ExplicitPersona: ft.ExplicitPersona,
		Fallback:        ft.Degraded,
		Defaulted:       ft.Degraded,
	}
	t.Candidate = matcher.Candidate{PersonaID: ft.Candidate, Score: ft.Score}
	return t, nil
}

// Run replays the whole fixture from start and summarizes it against the
// fixture's expectations.
func (f *Fixture) Run(start time.Time) ([]Result, Summary, error) {
	reg, err := f.LoadRegistry()
	if err != nil {
		return nil, Summary{}, err
	}
	cfg, err := f.Config.ToPolicyConfig()
	if err != nil {
		return nil, Summary{}, err
	}
	turns := make([]Turn, len(f.Turns))
	for i := range f.Turns {
		if turns[i], err = f.Turns[i].ToTurn(); err != nil {
			return nil, Summary{}, err
		}
	}
	results, _, err := Replay(reg, cfg, f.Start.ToState(reg, start), turns, start)
	if err != nil {
		return nil, Summary{}, err
	}
	return results, Summarize(results, f.Expected), nil
}

// #endregion fixture-loader
