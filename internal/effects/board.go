package effects

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// Sync statuses reported by the board.
const (
	SyncIdle       = "idle"
	SyncInProgress = "in-progress"
	SyncFailed     = "failed"
	SyncSucceeded  = "succeeded"
)

// panelOpenKinds and friends are the kinds the board understands.
var (
	panelOpenKinds  = []string{"open-panel", "open-muse", "open-side-panel", "show-muse", "launch-muse"}
	panelCloseKinds = []string{"close-panel", "close-muse", "hide-muse"}
	commentKinds    = []string{"post-comment", "show-comment"}
	syncKinds       = []string{"start-sync", "show-error", "retry-sync", "show-success"}
	otherKinds      = []string{"highlight", "set-field", "show-context", "complete-job"}
)

// DetectedContext is what the mock page resolved for the current task.
type DetectedContext struct {
	ClientID   string
	ClientName string
	TaskID     string
	TaskTitle  string
	Confidence float64
}

// SyncState tracks the mock sync banner.
type SyncState struct {
	Status    string
	Target    string
	Message   string
	ErrorCode string
	Attempts  int
}

// Job is a completed agent job shown in the panel.
type Job struct {
	ID           string
	Agent        string
	Deliverables []string
}

// Update is one entry in the board's activity feed.
type Update struct {
	Kind    string
	Summary string
}

// BoardState is a copy of everything the board renders.
type BoardState struct {
	PanelOpen bool
	Highlight string
	Fields    map[string]string
	Comments  []string
	Context   *DetectedContext
	Sync      SyncState
	Job       *Job
	Updates   []Update
	Version   int
}

// Board is the mock task board that effects mutate. It is safe for
// concurrent use; renderers read it through Snapshot.
type Board struct {
	mu    sync.Mutex
	state BoardState
}

// NewBoard returns an empty board with the panel closed.
func NewBoard() *Board {
	b := &Board{}
	b.resetLocked()
	return b
}

// Register routes every kind the board understands to it and makes it the
// mux fallback so unknown kinds still show up in the activity feed.
func (b *Board) Register(m *Mux) {
	for _, kinds := range [][]string{panelOpenKinds, panelCloseKinds, commentKinds, syncKinds, otherKinds} {
		m.Handle(b, kinds...)
	}
	m.Fallback(b)
}

// Reset clears the board back to its initial state.
func (b *Board) Reset() {
	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()
}

func (b *Board) resetLocked() {
	b.state = BoardState{
		Fields: map[string]string{},
		Sync:   SyncState{Status: SyncIdle},
	}
}

// Apply mutates the board according to the effect kind.
func (b *Board) Apply(effect scenario.Effect) {
	kind := NormalizeKind(effect.Kind)
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &b.state
	switch kind {
	case "open-panel", "open-muse", "open-side-panel", "show-muse", "launch-muse":
		s.PanelOpen = true
	case "close-panel", "close-muse", "hide-muse":
		s.PanelOpen = false
	case "highlight":
		s.Highlight = effect.String("target", "")
	case "set-field":
		field := effect.String("field", "")
		if field == "" {
			return
		}
		value := effect.String("value", "")
		s.Fields[field] = value
		b.noteLocked(kind, fmt.Sprintf("%s set to %s", field, value))
	case "post-comment", "show-comment":
		comment := effect.String("comment", effect.String("text", ""))
		if comment != "" {
			s.Comments = append(s.Comments, comment)
		}
		summary := comment
		if n := payloadInt(effect.Payload["attachments_count"]); n > 0 {
			summary = fmt.Sprintf("%s (%d attachments)", comment, n)
		}
		b.noteLocked(kind, summary)
	case "show-context":
		s.Context = &DetectedContext{
			ClientID:   effect.String("client_id", ""),
			ClientName: effect.String("client_name", ""),
			TaskID:     effect.String("task_id", ""),
			TaskTitle:  effect.String("task_title", ""),
			Confidence: payloadFloat(effect.Payload["confidence"]),
		}
		b.noteLocked(kind, fmt.Sprintf("context %s / %s", s.Context.ClientName, s.Context.TaskID))
	case "start-sync":
		s.Sync.Status = SyncInProgress
		s.Sync.Target = effect.String("target", s.Sync.Target)
		s.Sync.Message = ""
		s.Sync.ErrorCode = ""
		s.Sync.Attempts++
		b.noteLocked(kind, "syncing "+s.Sync.Target)
	case "show-error":
		s.Sync.Status = SyncFailed
		s.Sync.Message = effect.String("error_message", "Sync failed")
		s.Sync.ErrorCode = effect.String("error_code", "")
		b.noteLocked(kind, s.Sync.Message)
	case "retry-sync":
		if n := payloadInt(effect.Payload["attempt"]); n > 0 {
			s.Sync.Attempts = n
		} else {
			s.Sync.Attempts++
		}
		s.Sync.Status = syncStatus(effect.String("status", "success"))
		s.Sync.Message = effect.String("message", "")
		s.Sync.ErrorCode = ""
		b.noteLocked(kind, s.Sync.Message)
	case "show-success":
		s.Sync.Status = SyncSucceeded
		s.Sync.Message = effect.String("message", "")
		s.Sync.ErrorCode = ""
		if status := effect.String("task_status", ""); status != "" {
			s.Fields["status"] = status
		}
		b.noteLocked(kind, s.Sync.Message)
	case "complete-job":
		s.Job = &Job{
			ID:           effect.String("job_id", ""),
			Agent:        effect.String("agent", "Echo"),
			Deliverables: payloadStrings(effect.Payload["deliverables"]),
		}
		if len(s.Job.Deliverables) == 0 {
			s.Job.Deliverables = []string{"Content created"}
		}
		b.noteLocked(kind, fmt.Sprintf("%s delivered %d items", s.Job.Agent, len(s.Job.Deliverables)))
	default:
		if kind == "" {
			kind = "update"
		}
		b.noteLocked(kind, summarize(effect.Payload))
	}
	s.Version++
}

func (b *Board) noteLocked(kind, summary string) {
	b.state.Updates = append(b.state.Updates, Update{Kind: kind, Summary: summary})
}

// Snapshot returns a copy of the board state.
func (b *Board) Snapshot() BoardState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.state
	out.Fields = make(map[string]string, len(b.state.Fields))
	for k, v := range b.state.Fields {
		out.Fields[k] = v
	}
	out.Comments = append([]string(nil), b.state.Comments...)
	out.Updates = append([]Update(nil), b.state.Updates...)
	if b.state.Context != nil {
		ctx := *b.state.Context
		out.Context = &ctx
	}
	if b.state.Job != nil {
		job := *b.state.Job
		job.Deliverables = append([]string(nil), b.state.Job.Deliverables...)
		out.Job = &job
	}
	return out
}

func syncStatus(value string) string {
	switch NormalizeKind(value) {
	case "success", "succeeded", "ok":
		return SyncSucceeded
	case "error", "failed", "failure":
		return SyncFailed
	default:
		return SyncInProgress
	}
}

func payloadInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func payloadFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func payloadStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

func summarize(payload map[string]any) string {
	for _, key := range []string{"message", "text", "target", "comment"} {
		if v, ok := payload[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	if len(payload) == 0 {
		return ""
	}
	return fmt.Sprintf("%d fields", len(payload))
}
