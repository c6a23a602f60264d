package scenario

import (
	"fmt"
	"strings"
	"time"
)

// Effect is a tagged side-effect descriptor attached to a step. The player
// never interprets Payload; it forwards the whole descriptor to the effect sink.
type Effect struct {
	Kind    string         `json:"kind" yaml:"kind"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Clone returns a copy of the effect with a shallow-copied payload.
func (e Effect) Clone() Effect {
	return Effect{Kind: e.Kind, Payload: clonePayload(e.Payload)}
}

// String reads a string payload field, returning fallback when absent.
func (e Effect) String(key, fallback string) string {
	if e.Payload == nil {
		return fallback
	}
	value, ok := e.Payload[key]
	if !ok || value == nil {
		return fallback
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Pointer marks a spot on screen in percent coordinates.
type Pointer struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Step is one unit of playback.
type Step struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Highlight   string   `json:"highlight,omitempty" yaml:"highlight,omitempty"`
	Pointer     *Pointer `json:"pointer,omitempty" yaml:"pointer,omitempty"`
	Narration   string   `json:"narration,omitempty" yaml:"narration,omitempty"`
	Effect      *Effect  `json:"effect,omitempty" yaml:"effect,omitempty"`
	// DurationMS is how long the step stays current in timed mode. Zero means
	// unset and the player falls back to its default.
	DurationMS int64 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`

	// Action and Data are the older script shape; Normalized folds them into Effect.
	Action string         `json:"action,omitempty" yaml:"action,omitempty"`
	Data   map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Duration converts DurationMS into a time.Duration.
func (s Step) Duration() time.Duration {
	if s.DurationMS <= 0 {
		return 0
	}
	return time.Duration(s.DurationMS) * time.Millisecond
}

// HasEffect reports whether the step carries an effect descriptor.
func (s Step) HasEffect() bool {
	return s.Effect != nil && s.Effect.Kind != ""
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	clone := s
	if s.Pointer != nil {
		ptr := *s.Pointer
		clone.Pointer = &ptr
	}
	if s.Effect != nil {
		effect := s.Effect.Clone()
		clone.Effect = &effect
	}
	clone.Data = clonePayload(s.Data)
	return clone
}

func (s Step) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("scenario: step id is required")
	}
	if s.DurationMS < 0 {
		return fmt.Errorf("scenario: step %s duration_ms must be >= 0", s.ID)
	}
	if s.Effect != nil && strings.TrimSpace(s.Effect.Kind) == "" {
		return fmt.Errorf("scenario: step %s effect kind is required", s.ID)
	}
	return nil
}

// Scenario is an ordered, immutable sequence of steps.
type Scenario struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Epic        string            `json:"epic,omitempty" yaml:"epic,omitempty"`
	Story       string            `json:"story,omitempty" yaml:"story,omitempty"`
	Acceptance  string            `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step            `json:"steps" yaml:"steps"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Len returns the number of steps.
func (s Scenario) Len() int {
	return len(s.Steps)
}

// Title returns the display name, falling back to the id.
func (s Scenario) Title() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	if story := strings.TrimSpace(s.Story); story != "" {
		return story
	}
	return s.ID
}

// StepIndex returns the position of the step with the given id, or -1.
func (s Scenario) StepIndex(id string) int {
	for i, step := range s.Steps {
		if step.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the scenario.
func (s Scenario) Clone() Scenario {
	clone := Scenario{
		ID:          s.ID,
		Name:        s.Name,
		Epic:        s.Epic,
		Story:       s.Story,
		Acceptance:  s.Acceptance,
		Description: s.Description,
		Metadata:    cloneStringMap(s.Metadata),
	}
	if len(s.Steps) > 0 {
		clone.Steps = make([]Step, len(s.Steps))
		for i, step := range s.Steps {
			clone.Steps[i] = step.Clone()
		}
	}
	return clone
}

// Validate ensures the scenario is self-consistent. An empty step list is
// accepted here; the player rejects it on load.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("scenario: id is required")
	}
	seen := map[string]struct{}{}
	for idx, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("scenario %s step[%d]: %w", s.ID, idx, err)
		}
		if _, exists := seen[step.ID]; exists {
			return fmt.Errorf("scenario %s: duplicate step id %s", s.ID, step.ID)
		}
		seen[step.ID] = struct{}{}
	}
	return nil
}

// Normalized clones the scenario, trims identifiers, folds legacy action/data
// fields into effects, and validates the result.
func (s Scenario) Normalized() (Scenario, error) {
	clone := s.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	for i := range clone.Steps {
		step := &clone.Steps[i]
		step.ID = strings.TrimSpace(step.ID)
		if step.Effect == nil && strings.TrimSpace(step.Action) != "" {
			step.Effect = &Effect{Kind: strings.TrimSpace(step.Action), Payload: clonePayload(step.Data)}
		}
		if step.Effect != nil {
			step.Effect.Kind = strings.TrimSpace(step.Effect.Kind)
		}
		step.Action = ""
		step.Data = nil
	}
	if err := clone.Validate(); err != nil {
		return Scenario{}, err
	}
	return clone, nil
}

func clonePayload(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	clone := make(map[string]any, len(values))
	for key, value := range values {
		clone[key] = value
	}
	return clone
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	clone := make(map[string]string, len(values))
	for key, value := range values {
		clone[key] = value
	}
	return clone
}
