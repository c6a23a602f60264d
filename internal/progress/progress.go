// Package progress keeps in-memory bookkeeping of which steps were seen and
// which scenarios were played to the end.
package progress

import (
	"sync"
	"time"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// Record is the per-scenario bookkeeping.
type Record struct {
	ScenarioID  string
	Visited     []string
	Completed   bool
	CompletedAt time.Time
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*record
}

type record struct {
	order       []string
	seen        map[string]struct{}
	completed   bool
	completedAt time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now, records: map[string]*record{}}
}

// Observe returns a player observer bound to sc. When the last step becomes
// current the scenario is marked completed.
func (t *Tracker) Observe(sc scenario.Scenario) func(step scenario.Step, index int) {
	id := sc.ID
	last := len(sc.Steps) - 1
	return func(step scenario.Step, index int) {
		t.Visit(id, step.ID)
		if index == last {
			t.Complete(id)
		}
	}
}

// Visit marks a step as seen.
func (t *Tracker) Visit(scenarioID, stepID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.recordLocked(scenarioID)
	if _, ok := rec.seen[stepID]; ok {
		return
	}
	rec.seen[stepID] = struct{}{}
	rec.order = append(rec.order, stepID)
}

// Complete marks a scenario as played to the end. The first completion time sticks.
func (t *Tracker) Complete(scenarioID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.recordLocked(scenarioID)
	if rec.completed {
		return
	}
	rec.completed = true
	rec.completedAt = t.now()
}

// Completed reports whether the scenario was played to its last step.
func (t *Tracker) Completed(scenarioID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[scenarioID]
	return ok && rec.completed
}

// Record returns a copy of the bookkeeping for one scenario.
func (t *Tracker) Record(scenarioID string) Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Record{ScenarioID: scenarioID}
	rec, ok := t.records[scenarioID]
	if !ok {
		return out
	}
	out.Visited = append([]string(nil), rec.order...)
	out.Completed = rec.completed
	out.CompletedAt = rec.completedAt
	return out
}

// CategoryStats counts completed scenarios in a category.
func (t *Tracker) CategoryStats(cat scenario.Category) (completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sc := range cat.Scenarios {
		total++
		if rec, ok := t.records[sc.ID]; ok && rec.completed {
			completed++
		}
	}
	return completed, total
}

// Reset forgets a scenario.
func (t *Tracker) Reset(scenarioID string) {
	t.mu.Lock()
	delete(t.records, scenarioID)
	t.mu.Unlock()
}

func (t *Tracker) recordLocked(id string) *record {
	rec, ok := t.records[id]
	if !ok {
		rec = &record{seen: map[string]struct{}{}}
		t.records[id] = rec
	}
	return rec
}
