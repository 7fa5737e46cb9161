package replay

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
)

// #region fixture-tests

// TestFixtures replays every checked-in fixture and compares each turn with
// its expectation. If thresholds or transitions drift, this catches it.
func TestFixtures(t *testing.T) {
	for _, name := range []string{"handoff_scenario.json", "decline_cooldown.json", "pending_clear.json"} {
		t.Run(name, func(t *testing.T) {
			f, err := LoadFixture(filepath.Join("testdata", name))
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}
			results, s, err := f.Run(t0)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(results) != len(f.Expected) {
				t.Fatalf("expected %d results, got %d", len(f.Expected), len(results))
			}
			for _, m := range s.Mismatches {
				t.Error(m)
			}
		})
	}
}

func TestFixture_HandoffScenarioWindow(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "handoff_scenario.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, s, err := f.Run(t0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.FinalPersona != "hera" {
		t.Errorf("expected final persona hera, got %s", s.FinalPersona)
	}
	// switching back must earn persistence again
	last := results[len(results)-1].Decision
	if last.Wins != 1 || last.Proposed != "gaia" {
		t.Errorf("expected gaia with 1 win, got %s with %d", last.Proposed, last.Wins)
	}
}

func TestFixtureConfig_Defaults(t *testing.T) {
	cfg, err := FixtureConfig{}.ToPolicyConfig()
	if err != nil {
		t.Fatalf("ToPolicyConfig: %v", err)
	}
	if diff := cmp.Diff(policy.DefaultConfig(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}

	if _, err := (FixtureConfig{Cooldown: "soon"}).ToPolicyConfig(); err == nil {
		t.Error("expected bad cooldown to fail")
	}
	if _, err := (FixtureConfig{PendingMode: "maybe"}).ToPolicyConfig(); err == nil {
		t.Error("expected bad pending mode to fail")
	}
}

func TestFixtureConfig_ExplicitZero(t *testing.T) {
	var f Fixture
	if err := json.Unmarshal([]byte(`{"config":{"intent_floor":0,"suggest_threshold":0}}`), &f); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	cfg, err := f.Config.ToPolicyConfig()
	if err != nil {
		t.Fatalf("ToPolicyConfig: %v", err)
	}
	if cfg.IntentFloor != 0 || cfg.SuggestThreshold != 0 {
		t.Errorf("explicit zeros overwritten: floor=%v threshold=%v", cfg.IntentFloor, cfg.SuggestThreshold)
	}
	if cfg.PersistenceN != policy.DefaultConfig().PersistenceN {
		t.Errorf("absent persistence_n should default, got %d", cfg.PersistenceN)
	}

	back, err := FromPolicyConfig(cfg).ToPolicyConfig()
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestFixtureTurn_Degraded(t *testing.T) {
	turn, err := FixtureTurn{TurnID: "d", Message: "resume", Candidate: "hera", Score: 4, Degraded: true}.ToTurn()
	if err != nil {
		t.Fatalf("ToTurn: %v", err)
	}
	if !turn.Signal.Degraded() {
		t.Fatalf("expected degraded signal, got %+v", turn.Signal)
	}

	f := &Fixture{
		Start: FixtureStart{UserID: "u1"},
		Turns: []FixtureTurn{
			{TurnID: "d1", Message: "resume", Candidate: "hera", Score: 4, Degraded: true},
			{TurnID: "d2", Message: "resume", Candidate: "hera", Score: 4, Degraded: true, ElapsedSeconds: 5},
			{TurnID: "d3", Message: "resume", Candidate: "hera", Score: 4, Degraded: true, ElapsedSeconds: 5},
		},
		Expected: []Expectation{
			{TurnID: "d1", Mode: "stay", Stage: "idle", Persona: "gaia"},
			{TurnID: "d2", Mode: "stay", Stage: "idle", Persona: "gaia"},
			{TurnID: "d3", Mode: "stay", Stage: "idle", Persona: "gaia"},
		},
	}
	_, s, err := f.Run(t0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.Passed() {
		t.Errorf("degraded turns moved routing: %v", s.Mismatches)
	}
}

func TestFixtureTurn_Button(t *testing.T) {
	turn, err := FixtureTurn{TurnID: "b", Button: "Confirm", Candidate: "hera", Score: 3}.ToTurn()
	if err != nil {
		t.Fatalf("ToTurn: %v", err)
	}
	if turn.Button != handoff.ActionConfirm || turn.Candidate.PersonaID != "" {
		t.Errorf("expected bare confirm press, got %+v", turn)
	}
	if _, err := (FixtureTurn{TurnID: "x", Button: "maybe"}).ToTurn(); err == nil {
		t.Error("expected unknown button to fail")
	}
}

// #endregion fixture-tests

// #region export-tests

func TestExportFixture_RoundTrip(t *testing.T) {
	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }
	entries := []logging.Entry{
		{TurnID: "t1", UserID: "u9", Action: "route", Message: "resume help", Intent: "career", IntentConfidence: 0.5,
			Candidate: "hera", CandidateScore: 5.6, Mode: "stay", Target: "gaia", StageAfter: "idle", PersonaAfter: "gaia", CreatedAt: at(0)},
		{TurnID: "t2", UserID: "u9", Action: "route", Message: "resume again", Intent: "career", IntentConfidence: 0.5,
			Candidate: "hera", CandidateScore: 5.6, Mode: "suggest", Target: "gaia", Suggested: "hera",
			StageAfter: "awaiting_confirmation", PersonaAfter: "gaia", CreatedAt: at(45)},
		{TurnID: "t3", UserID: "u9", Action: "confirm", Mode: "stay", Target: "hera", StageAfter: "idle", PersonaAfter: "hera", CreatedAt: at(60)},
	}

	f, err := ExportFixture(entries, "exported", "", policy.DefaultConfig())
	if err != nil {
		t.Fatalf("ExportFixture: %v", err)
	}
	if f.Start.UserID != "u9" {
		t.Errorf("expected user u9, got %s", f.Start.UserID)
	}
	if f.Turns[1].ElapsedSeconds != 45 || f.Turns[2].ElapsedSeconds != 15 {
		t.Errorf("unexpected elapsed: %v, %v", f.Turns[1].ElapsedSeconds, f.Turns[2].ElapsedSeconds)
	}
	if f.Turns[2].Button != "confirm" {
		t.Errorf("expected empty-message confirm to export as a button, got %+v", f.Turns[2])
	}

	path := filepath.Join(t.TempDir(), "exported.json")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	_, s, err := loaded.Run(t0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.Passed() {
		t.Errorf("exported fixture does not reproduce its log: %v", s.Mismatches)
	}
}

func TestExportFixture_Empty(t *testing.T) {
	if _, err := ExportFixture(nil, "", "", policy.DefaultConfig()); err != ErrNoEntries {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

// #endregion export-tests
