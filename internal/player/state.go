package player

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// Mode selects who drives the step index.
type Mode string

const (
	// ModeManual leaves navigation to the caller.
	ModeManual Mode = "manual"
	// ModeTimed lets the player auto-advance once Play is called.
	ModeTimed Mode = "timed"
)

// ParseMode accepts "manual" or "timed" (case-insensitive).
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeManual:
		return ModeManual, nil
	case ModeTimed:
		return ModeTimed, nil
	}
	return "", fmt.Errorf("player: unknown mode %q (want manual or timed)", value)
}

// Status is the player's lifecycle state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusManualReady  Status = "manual-ready"
	StatusTimedPaused  Status = "timed-paused"
	StatusTimedPlaying Status = "timed-playing"
)

// FriendlyName returns a short human label.
func (s Status) FriendlyName() string {
	switch s {
	case StatusManualReady:
		return "Manual"
	case StatusTimedPaused:
		return "Paused"
	case StatusTimedPlaying:
		return "Playing"
	default:
		return "Idle"
	}
}

// Position is the current step together with its index.
type Position struct {
	Index int
	Step  scenario.Step
}

// PlaybackState is a read-only snapshot of a player.
type PlaybackState struct {
	ScenarioID   string
	Index        int
	Length       int
	Mode         Mode
	Playing      bool
	Status       Status
	Visited      int
	StepDuration time.Duration
	// Progress is the elapsed fraction of the current step while timed
	// playback is running, frozen on pause and reset on every step change.
	Progress float64
}

// AtStart reports whether the first step is current.
func (s PlaybackState) AtStart() bool {
	return s.Length > 0 && s.Index == 0
}

// AtEnd reports whether the last step is current.
func (s PlaybackState) AtEnd() bool {
	return s.Length > 0 && s.Index == s.Length-1
}
