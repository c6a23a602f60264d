package effects

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/walkthrough/internal/scenario"
)

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestMuxRoutesByNormalizedKind(t *testing.T) {
	var got []string
	m := NewMux(nil)
	m.Handle(SinkFunc(func(e scenario.Effect) { got = append(got, "panel:"+e.Kind) }), "Open-Panel")
	m.Handle(SinkFunc(func(e scenario.Effect) { got = append(got, "comment:"+e.Kind) }), "post-comment")

	m.Apply(scenario.Effect{Kind: "  OPEN-panel "})
	m.Apply(scenario.Effect{Kind: "post-comment"})

	assert.Equal(t, []string{"panel:open-panel", "comment:post-comment"}, got)
	assert.ElementsMatch(t, []string{"open-panel", "post-comment"}, m.Kinds())
}

func TestMuxDropsUnknownKindWithoutFallback(t *testing.T) {
	logger := &captureLogger{}
	m := NewMux(logger)
	m.Apply(scenario.Effect{Kind: "confetti"})
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "confetti")

	var fell []string
	m.Fallback(SinkFunc(func(e scenario.Effect) { fell = append(fell, e.Kind) }))
	m.Apply(scenario.Effect{Kind: "confetti"})
	assert.Equal(t, []string{"confetti"}, fell)
}

func TestBoardPanelAndHighlight(t *testing.T) {
	board := NewBoard()
	m := NewMux(nil)
	board.Register(m)

	m.Apply(scenario.Effect{Kind: "open-muse"})
	m.Apply(scenario.Effect{Kind: "highlight", Payload: map[string]any{"target": "nucleus"}})
	state := board.Snapshot()
	assert.True(t, state.PanelOpen)
	assert.Equal(t, "nucleus", state.Highlight)

	m.Apply(scenario.Effect{Kind: "close-panel"})
	assert.False(t, board.Snapshot().PanelOpen)
	assert.Equal(t, 3, board.Snapshot().Version)
}

func TestBoardFieldsAndComments(t *testing.T) {
	board := NewBoard()
	board.Apply(scenario.Effect{Kind: "set-field", Payload: map[string]any{"field": "status", "value": "In Progress"}})
	board.Apply(scenario.Effect{Kind: "show-comment", Payload: map[string]any{
		"comment":           "Content generation complete",
		"attachments_count": 3,
	}})

	state := board.Snapshot()
	assert.Equal(t, "In Progress", state.Fields["status"])
	assert.Equal(t, []string{"Content generation complete"}, state.Comments)
	require.Len(t, state.Updates, 2)
	assert.Equal(t, "Content generation complete (3 attachments)", state.Updates[1].Summary)
}

func TestBoardSyncLifecycle(t *testing.T) {
	board := NewBoard()
	board.Apply(scenario.Effect{Kind: "start-sync", Payload: map[string]any{"target": "EC-3021"}})
	assert.Equal(t, SyncInProgress, board.Snapshot().Sync.Status)

	board.Apply(scenario.Effect{Kind: "show-error", Payload: map[string]any{
		"error_message": "rate limit exceeded",
		"error_code":    429,
	}})
	sync := board.Snapshot().Sync
	assert.Equal(t, SyncFailed, sync.Status)
	assert.Equal(t, "429", sync.ErrorCode)
	assert.Equal(t, 1, sync.Attempts)

	board.Apply(scenario.Effect{Kind: "retry-sync", Payload: map[string]any{"attempt": 2, "status": "success"}})
	sync = board.Snapshot().Sync
	assert.Equal(t, SyncSucceeded, sync.Status)
	assert.Equal(t, 2, sync.Attempts)
	assert.Empty(t, sync.ErrorCode)
	assert.Equal(t, "EC-3021", sync.Target)
}

func TestBoardContextAndJob(t *testing.T) {
	board := NewBoard()
	board.Apply(scenario.Effect{Kind: "show-context", Payload: map[string]any{
		"client_name": "EcoBottle Co",
		"task_id":     "EC-3021",
		"confidence":  0.99,
	}})
	board.Apply(scenario.Effect{Kind: "complete-job", Payload: map[string]any{
		"agent":        "Echo",
		"deliverables": []any{"posts", "threads"},
	}})

	state := board.Snapshot()
	require.NotNil(t, state.Context)
	assert.Equal(t, "EC-3021", state.Context.TaskID)
	assert.InDelta(t, 0.99, state.Context.Confidence, 1e-9)
	require.NotNil(t, state.Job)
	assert.Equal(t, []string{"posts", "threads"}, state.Job.Deliverables)
}

func TestBoardSnapshotIsACopy(t *testing.T) {
	board := NewBoard()
	board.Apply(scenario.Effect{Kind: "set-field", Payload: map[string]any{"field": "owner", "value": "ops"}})
	snap := board.Snapshot()
	snap.Fields["owner"] = "someone else"
	assert.Equal(t, "ops", board.Snapshot().Fields["owner"])

	board.Reset()
	assert.Empty(t, board.Snapshot().Fields)
	assert.Equal(t, SyncIdle, board.Snapshot().Sync.Status)
}

func TestBoardRecordsUnknownKinds(t *testing.T) {
	board := NewBoard()
	board.Apply(scenario.Effect{Kind: "show-routing", Payload: map[string]any{"message": "routed to Scout"}})
	updates := board.Snapshot().Updates
	require.Len(t, updates, 1)
	assert.Equal(t, Update{Kind: "show-routing", Summary: "routed to Scout"}, updates[0])
}
