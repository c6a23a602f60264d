package eventbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ProtocolVersion identifies the bridge contract version exposed via /health.
	ProtocolVersion = "1.0.0"
	// EventSchemaVersion is the currently supported inbound event version.
	EventSchemaVersion = 1
)

// Inbound event types.
const (
	// TypeNarrationFinished reports that the narration for step_id ended.
	TypeNarrationFinished = "narration_finished"
	// TypeNavigate carries a NavigatePayload.
	TypeNavigate = "navigate"
	// TypeSetMode carries a ModePayload.
	TypeSetMode = "set_mode"
)

// Navigation actions accepted in NavigatePayload.Action.
const (
	ActionNext    = "next"
	ActionPrev    = "prev"
	ActionRestart = "restart"
	ActionPlay    = "play"
	ActionPause   = "pause"
	ActionSkip    = "skip"
	ActionJump    = "jump"
)

// Event is a single command or signal posted to the bridge by a narration
// process or a remote control.
type Event struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	Sequence   int64           `json:"sequence"`
	Type       string          `json:"type"`
	ClientTime time.Time       `json:"client_time"`
	ServerTime time.Time       `json:"server_time"`
	SessionID  string          `json:"session_id"`
	StepID     string          `json:"step_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NavigatePayload is the body of a navigate event. Index is only read for jump.
type NavigatePayload struct {
	Action string `json:"action"`
	Index  *int   `json:"index,omitempty"`
}

// ModePayload is the body of a set_mode event.
type ModePayload struct {
	Mode string `json:"mode"`
}

// NewEvent builds a versioned event with a fresh id.
func NewEvent(sessionID, eventType string, payload any) (Event, error) {
	evt := Event{
		Version:    EventSchemaVersion,
		EventID:    uuid.NewString(),
		Type:       eventType,
		ClientTime: time.Now().UTC(),
		SessionID:  sessionID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("eventbridge: encode payload: %w", err)
		}
		evt.Payload = raw
	}
	return evt, nil
}

// Normalize applies defaults and canonical formatting before validation.
// Events posted without an id get one so they still pass through dedupe.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Version == 0 {
		e.Version = EventSchemaVersion
	}
	e.EventID = strings.TrimSpace(e.EventID)
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	e.SessionID = strings.TrimSpace(e.SessionID)
	e.StepID = strings.TrimSpace(e.StepID)
}

// StampServerTime overwrites ServerTime with the supplied clock reading (UTC).
func (e *Event) StampServerTime(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ServerTime = now.UTC()
}

// Validate enforces baseline schema requirements for incoming events.
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("version %d not supported", e.Version)
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.SessionID == "" {
		return errors.New("session_id is required")
	}
	switch e.Type {
	case TypeNarrationFinished:
		if e.StepID == "" {
			return errors.New("step_id is required for narration_finished")
		}
	case TypeNavigate:
		nav, err := e.Navigate()
		if err != nil {
			return err
		}
		return nav.validate()
	case TypeSetMode:
		if _, err := e.Mode(); err != nil {
			return err
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("type %q not supported", e.Type)
	}
	return nil
}

// Navigate decodes the payload of a navigate event.
func (e Event) Navigate() (NavigatePayload, error) {
	var nav NavigatePayload
	if len(e.Payload) == 0 {
		return nav, errors.New("navigate payload is required")
	}
	if err := json.Unmarshal(e.Payload, &nav); err != nil {
		return nav, fmt.Errorf("navigate payload: %w", err)
	}
	nav.Action = strings.ToLower(strings.TrimSpace(nav.Action))
	return nav, nil
}

// Mode decodes the payload of a set_mode event.
func (e Event) Mode() (ModePayload, error) {
	var mode ModePayload
	if len(e.Payload) == 0 {
		return mode, errors.New("set_mode payload is required")
	}
	if err := json.Unmarshal(e.Payload, &mode); err != nil {
		return mode, fmt.Errorf("set_mode payload: %w", err)
	}
	mode.Mode = strings.ToLower(strings.TrimSpace(mode.Mode))
	if mode.Mode == "" {
		return mode, errors.New("set_mode payload: mode is required")
	}
	return mode, nil
}

func (n NavigatePayload) validate() error {
	switch n.Action {
	case ActionNext, ActionPrev, ActionRestart, ActionPlay, ActionPause, ActionSkip:
		return nil
	case ActionJump:
		if n.Index == nil {
			return errors.New("navigate jump requires index")
		}
		return nil
	case "":
		return errors.New("navigate action is required")
	default:
		return fmt.Errorf("navigate action %q not supported", n.Action)
	}
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records bridge status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	RouterReady   bool   `json:"router_ready"`
	Sessions      int    `json:"sessions"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	EventID    string    `json:"event_id"`
	ServerTime time.Time `json:"server_time"`
}

type sessionsResponse struct {
	Sessions []string `json:"sessions"`
}
