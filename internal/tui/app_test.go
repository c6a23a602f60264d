package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/walkthrough/internal/config"
	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/scenario/builtin"
	"github.com/kingrea/walkthrough/internal/session"
)

func TestCategoryMenuShowsCompletionBadges(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	items := app.categoryMenu.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(items))
	}
	first := items[0].(categoryItem)
	if first.id != "epic-a" || !strings.HasSuffix(first.Title(), "0/3") {
		t.Fatalf("unexpected first category %q (%s)", first.Title(), first.id)
	}

	app.tracker.Complete("a3-sync-failures")
	app.refreshMenus()
	first = app.categoryMenu.Items()[0].(categoryItem)
	if !strings.HasSuffix(first.Title(), "1/3") {
		t.Fatalf("badge not updated: %q", first.Title())
	}
}

func TestEnterOpensCategoryThenScenario(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.state != stateScenarioMenu || app.categoryID != "epic-a" {
		t.Fatalf("expected epic-a scenario menu, got state %d category %q", app.state, app.categoryID)
	}
	if got := len(app.scenarioMenu.Items()); got != 3 {
		t.Fatalf("scenario menu has %d items, want 3", got)
	}
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if app.state != statePlayer || app.player == nil {
		t.Fatalf("expected player view, got state %d", app.state)
	}
	if id := app.player.session.Scenario.ID; id != "a1-detect-context" {
		t.Fatalf("opened %s, want a1-detect-context", id)
	}

	app = update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.state != stateScenarioMenu {
		t.Fatalf("esc in player should return to scenarios, got state %d", app.state)
	}
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.state != stateCategoryMenu {
		t.Fatalf("esc in scenarios should return to categories, got state %d", app.state)
	}
}

func TestPlayerKeysDriveNavigation(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app.openScenario("a1-detect-context")
	p := app.player.session.Player

	app = update(t, app, tea.KeyMsg{Type: tea.KeyRight})
	app = update(t, app, runes("n"))
	if got := p.State().Index; got != 2 {
		t.Fatalf("index after two next = %d, want 2", got)
	}
	app = update(t, app, tea.KeyMsg{Type: tea.KeyLeft})
	if got := p.State().Index; got != 1 {
		t.Fatalf("index after prev = %d, want 1", got)
	}
	app = update(t, app, runes("e"))
	if !p.State().AtEnd() {
		t.Fatalf("skip should land on the last step, got %d", p.State().Index)
	}
	app = update(t, app, runes("r"))
	if got := p.State().Index; got != 0 {
		t.Fatalf("restart index = %d, want 0", got)
	}

	// play/pause only applies in timed mode
	app = update(t, app, tea.KeyMsg{Type: tea.KeySpace})
	if p.State().Playing {
		t.Fatalf("space in manual mode must not start playback")
	}
	app = update(t, app, runes("?"))
	if !app.player.help.ShowAll {
		t.Fatalf("expected full help after ?")
	}
}

func TestModeToggleStartsTimedPlaybackAndPersists(t *testing.T) {
	projectDir := t.TempDir()
	app := newTestApp(t, projectDir)
	app.openScenario("kf-tour")
	p := app.player.session.Player

	app = update(t, app, runes("m"))
	if p.State().Mode != player.ModeTimed {
		t.Fatalf("mode = %s, want timed", p.State().Mode)
	}
	app = update(t, app, tea.KeyMsg{Type: tea.KeySpace})
	if p.State().Status != player.StatusTimedPlaying {
		t.Fatalf("status = %s, want timed-playing", p.State().Status)
	}
	app = update(t, app, tea.KeyMsg{Type: tea.KeySpace})
	if p.State().Status != player.StatusTimedPaused {
		t.Fatalf("status = %s, want timed-paused", p.State().Status)
	}

	reloaded, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if reloaded.PlaybackMode() != "timed" {
		t.Fatalf("persisted mode = %q, want timed", reloaded.PlaybackMode())
	}
}

func TestStepChangesReachTheView(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app.openScenario("a2-deliverables-sync")
	view := app.player
	listen := view.listen()

	view.session.Player.Next()
	msg, ok := listen().(stepMsg)
	if !ok {
		t.Fatalf("expected stepMsg")
	}
	if msg.index != 1 || msg.sessionID != view.session.ID {
		t.Fatalf("unexpected step message %+v", msg)
	}
	if cmd := view.Update(msg); cmd == nil {
		t.Fatalf("view should keep listening after a step message")
	}
	if view.lastStep != "a2-2" {
		t.Fatalf("last step = %q, want a2-2", view.lastStep)
	}
	if cmd := view.Update(stepMsg{sessionID: "stale"}); cmd != nil {
		t.Fatalf("stale session messages should be ignored")
	}
}

func TestExitAfterLastStepMarksCompletion(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app.openScenario("a3-sync-failures")
	app = update(t, app, runes("e"))

	view := app.View()
	for _, want := range []string{"Retry Succeeds", "4/4", "TASK BOARD"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	app = update(t, app, runes("q"))
	if app.player != nil {
		t.Fatalf("player view should be closed")
	}
	if !strings.Contains(app.statusMsg, "Completed a3-sync-failures") {
		t.Fatalf("status = %q", app.statusMsg)
	}
	var done scenarioItem
	for _, item := range app.scenarioMenu.Items() {
		if it := item.(scenarioItem); it.id == "a3-sync-failures" {
			done = it
		}
	}
	if !done.done || !strings.HasPrefix(done.Title(), "✓") {
		t.Fatalf("scenario not marked done: %+v", done)
	}
}

func TestStartScenarioOpensOnInit(t *testing.T) {
	app := newTestApp(t, t.TempDir(), WithStartScenario("kf-tour"))
	if cmd := app.Init(); cmd == nil {
		t.Fatalf("expected listener commands from Init")
	}
	if app.state != statePlayer || app.player.session.Scenario.ID != "kf-tour" {
		t.Fatalf("start scenario not opened, state %d", app.state)
	}
	if app.categoryID != "knowledge-factory" {
		t.Fatalf("category = %q", app.categoryID)
	}
}

func TestUnknownScenarioStaysInMenu(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app.openScenario("missing")
	if app.state != stateCategoryMenu || app.player != nil {
		t.Fatalf("unknown scenario should not open the player")
	}
	if !strings.Contains(app.statusMsg, "not found") {
		t.Fatalf("status = %q", app.statusMsg)
	}
}

func TestQuitClosesSession(t *testing.T) {
	app := newTestApp(t, t.TempDir())
	app.openScenario("kf-tour")
	view := app.player
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if app.player != nil {
		t.Fatalf("player view should be released on quit")
	}
	if msg := view.listen()(); msg != nil {
		t.Fatalf("closed view should stop listening, got %T", msg)
	}
	if cmd := view.Update(runes("n")); cmd != nil {
		t.Fatalf("closed view should ignore keys")
	}
}

func newTestApp(t *testing.T, projectDir string, opts ...AppOption) *App {
	t.Helper()
	files, err := scenario.LoadFS(builtin.Files)
	if err != nil {
		t.Fatalf("load builtin: %v", err)
	}
	catalog := scenario.NewCatalog()
	if err := catalog.AddFiles(files); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	clock := player.NewManualClock(time.Unix(1730000000, 0))
	opts = append([]AppOption{
		WithCatalog(catalog),
		WithSessionOptions(session.WithClock(clock)),
	}, opts...)
	app, err := NewApp(projectDir, opts...)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app
}

// update feeds msg to the app and runs any command that resolves
// immediately into an app-level message.
func update(t *testing.T, app *App, msg tea.Msg) *App {
	t.Helper()
	model, cmd := app.Update(msg)
	next, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	if cmd == nil {
		return next
	}
	switch out := cmd().(type) {
	case playerExitMsg, modeChangedMsg:
		model, _ = next.Update(out)
		next = model.(*App)
	}
	return next
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
