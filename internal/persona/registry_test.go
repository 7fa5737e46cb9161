package persona

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// #region registry-tests

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	if reg.DefaultID() != DefaultID {
		t.Fatalf("expected default %s, got %s", DefaultID, reg.DefaultID())
	}
	want := []string{"gaia", "athena", "aphrodite", "hera"}
	if got := reg.IDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: got %v, want %v", got, want)
	}
	hera, ok := reg.Get("hera")
	if !ok {
		t.Fatal("expected hera")
	}
	if hera.Boost("career") != 3.0 {
		t.Errorf("hera career boost: got %f", hera.Boost("career"))
	}
	if hera.Boost("unknown") != 0 {
		t.Errorf("expected 0 boost for unknown intent")
	}
}

func TestNewRegistryErrors(t *testing.T) {
	tests := []struct {
		name      string
		defaultID string
		personas  []Persona
		want      error
	}{
		{"empty", "a", nil, ErrEmptyRegistry},
		{"empty-id", "a", []Persona{{ID: " "}}, ErrEmptyID},
		{"duplicate", "a", []Persona{{ID: "a"}, {ID: "A"}}, ErrDuplicateID},
		{"unknown-default", "z", []Persona{{ID: "a"}}, ErrUnknownDefault},
		{"negative-weight", "a", []Persona{{ID: "a", Keywords: []Keyword{{Term: "x", Weight: -1}}}}, ErrInvalidWeight},
		{"blank-term", "a", []Persona{{ID: "a", Keywords: []Keyword{{Term: "", Weight: 1}}}}, ErrInvalidWeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defaultID, tt.personas...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	src := Persona{ID: "a", IntentBoost: map[string]float64{"x": 1}}
	reg, err := NewRegistry("a", src)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	src.IntentBoost["x"] = 99

	got, _ := reg.Get("a")
	if got.Boost("x") != 1 {
		t.Fatalf("registry changed through caller map: %f", got.Boost("x"))
	}
	got.IntentBoost["x"] = 42
	again, _ := reg.Get("a")
	if again.Boost("x") != 1 {
		t.Fatalf("registry changed through returned map: %f", again.Boost("x"))
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	reg := DefaultRegistry()
	p, why := reg.Resolve("zeus")
	if p.ID != "gaia" {
		t.Fatalf("expected gaia fallback, got %s", p.ID)
	}
	if why == "" {
		t.Fatal("expected fallback rationale")
	}
	p, why = reg.Resolve("athena")
	if p.ID != "athena" || why != "" {
		t.Fatalf("expected athena without rationale, got %s %q", p.ID, why)
	}
}

func TestLookupByDisplayName(t *testing.T) {
	reg := DefaultRegistry()
	p, ok := reg.Lookup("  APHRODITE ")
	if !ok || p.ID != "aphrodite" {
		t.Fatalf("lookup failed: %v %s", ok, p.ID)
	}
	if _, ok := reg.Lookup("zeus"); ok {
		t.Fatal("expected zeus not found")
	}
}

func TestTraits(t *testing.T) {
	got := DefaultRegistry().Traits()
	want := []string{"independence", "nurturing", "strategy", "wisdom"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// #endregion registry-tests

// #region load-tests

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("testdata", "catalog.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg.DefaultID() != "router" {
		t.Fatalf("default: got %s", reg.DefaultID())
	}
	career, ok := reg.Get("career")
	if !ok {
		t.Fatal("expected career persona")
	}
	if career.Keywords[0].Term != "internship" {
		t.Errorf("expected lowercased term, got %q", career.Keywords[0].Term)
	}
	if career.Boost("career") != 2.0 {
		t.Errorf("boost: got %f", career.Boost("career"))
	}
}

func TestLoadRegistryInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("default: nobody\npersonas:\n  - id: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRegistry(path); !errors.Is(err, ErrUnknownDefault) {
		t.Fatalf("expected ErrUnknownDefault, got %v", err)
	}
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// #endregion load-tests

// #region quiz-tests

func TestMatchQuiz(t *testing.T) {
	reg := DefaultRegistry()
	tests := []struct {
		name    string
		answers []int
		want    string
	}{
		{"balanced-favors-athena", []int{5, 5, 5, 5, 5}, "athena"},
		{"nurturing-favors-aphrodite", []int{1, 1, 1, 5, 1}, "aphrodite"},
		{"strategy-independence-favors-hera", []int{0, 5, 5, 0, 0}, "hera"},
		{"empty-keeps-default", nil, "gaia"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.MatchQuiz(tt.answers)
			if got.PersonaID != tt.want {
				t.Fatalf("got %s (score %.1f), want %s", got.PersonaID, got.Score, tt.want)
			}
			if len(got.Rationale) == 0 {
				t.Error("expected rationale")
			}
		})
	}
}

func TestMatchQuizCyclesAnswers(t *testing.T) {
	reg := DefaultRegistry()
	got := reg.MatchQuiz([]int{1, 0, 0, 0, 0, 2})
	if got.TraitTotals["wisdom"] != 3 {
		t.Fatalf("expected wisdom total 3 after wrap-around, got %f", got.TraitTotals["wisdom"])
	}
}

// #endregion quiz-tests
