package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

// #region mode

// Mode is the routing action for one turn.
type Mode string

const (
	ModeStay    Mode = "stay"
	ModeSuggest Mode = "suggest"
	ModeSwitch  Mode = "switch"
)

// PendingMode chooses how a message that is neither yes nor no is handled
// while a suggestion is pending. Fixed for the life of the process.
type PendingMode string

const (
	PendingStrict PendingMode = "strict" // re-prompt, state unchanged
	PendingClear  PendingMode = "clear"  // drop the suggestion, route the message fresh
)

// #endregion mode

// #region config

var ErrInvalidConfig = errors.New("invalid routing config")

// Config holds the routing thresholds. All values are constants for the life
// of the process; boundaries are inclusive.
type Config struct {
	SuggestThreshold    float64       `yaml:"suggest_threshold" json:"suggest_threshold"`
	AutoSwitchThreshold float64       `yaml:"auto_switch_threshold" json:"auto_switch_threshold"`
	IntentFloor         float64       `yaml:"intent_floor" json:"intent_floor"`
	PersistenceN        int           `yaml:"persistence_n" json:"persistence_n"`
	WindowM             int           `yaml:"window_m" json:"window_m"`
	CooldownDuration    time.Duration `yaml:"cooldown" json:"cooldown"`
	AutoSwitchEnabled   bool          `yaml:"auto_switch_enabled" json:"auto_switch_enabled"`
	PendingMode         PendingMode   `yaml:"pending_mode" json:"pending_mode"`
}

// DefaultConfig returns the production defaults: confirm every handoff.
func DefaultConfig() Config {
	return Config{
		SuggestThreshold:    1.6,
		AutoSwitchThreshold: 4.5,
		IntentFloor:         0.65,
		PersistenceN:        2,
		WindowM:             5,
		CooldownDuration:    30 * time.Minute,
		AutoSwitchEnabled:   false,
		PendingMode:         PendingStrict,
	}
}

// Validate reports configuration errors. Callers treat them as fatal.
func (c Config) Validate() error {
	switch {
	case c.PersistenceN < 1:
		return fmt.Errorf("%w: persistence_n %d < 1", ErrInvalidConfig, c.PersistenceN)
	case c.WindowM < 1:
		return fmt.Errorf("%w: window_m %d < 1", ErrInvalidConfig, c.WindowM)
	case c.PersistenceN > c.WindowM:
		return fmt.Errorf("%w: persistence_n %d exceeds window_m %d", ErrInvalidConfig, c.PersistenceN, c.WindowM)
	case c.IntentFloor < 0 || c.IntentFloor > 1:
		return fmt.Errorf("%w: intent_floor %.2f outside [0,1]", ErrInvalidConfig, c.IntentFloor)
	case c.SuggestThreshold < 0:
		return fmt.Errorf("%w: suggest_threshold %.2f < 0", ErrInvalidConfig, c.SuggestThreshold)
	case c.CooldownDuration <= 0:
		return fmt.Errorf("%w: cooldown %s must be positive", ErrInvalidConfig, c.CooldownDuration)
	case c.AutoSwitchEnabled && c.AutoSwitchThreshold < c.SuggestThreshold:
		return fmt.Errorf("%w: auto_switch_threshold %.2f below suggest_threshold %.2f",
			ErrInvalidConfig, c.AutoSwitchThreshold, c.SuggestThreshold)
	}
	switch c.PendingMode {
	case PendingStrict, PendingClear:
	default:
		return fmt.Errorf("%w: unknown pending_mode %q", ErrInvalidConfig, c.PendingMode)
	}
	return nil
}

// #endregion config

// #region input

// Input bundles everything one decision reads.
type Input struct {
	Current          string
	Candidate        matcher.Candidate
	IntentConfidence float64
	Degraded         bool // the classifier was unavailable this turn
	ExplicitPersona  string
	Message          string
	State            state.RoutingState
	Now              time.Time
}

// #endregion input

// #region decision

// Decision is the output of the routing policy.
type Decision struct {
	Mode       Mode   `json:"mode"`
	Target     string `json:"target"`              // persona answering this turn
	Suggested  string `json:"suggested,omitempty"` // set on suggest
	Proposed   string `json:"proposed,omitempty"`  // persona evaluated this turn
	Reason     string `json:"reason"`
	Wins       int    `json:"wins"`
	OnCooldown bool   `json:"on_cooldown,omitempty"`
	Explicit   bool   `json:"explicit,omitempty"`
}

// #endregion decision
