// internal/tui/app.go
//
// This is the terminal front end for walkthrough. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the menus, the open player view and status text
// 2. Update: a function that updates state based on messages
// 3. View: a function that renders state to a string
//
// Player notifications arrive on their own goroutine and are turned into
// messages by the player view, so Update stays the only place state changes.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/walkthrough/internal/config"
	"github.com/kingrea/walkthrough/internal/eventbridge"
	"github.com/kingrea/walkthrough/internal/logbook"
	"github.com/kingrea/walkthrough/internal/progress"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/scenario/builtin"
	"github.com/kingrea/walkthrough/internal/session"
)

// appState represents which "screen" we're on
type appState int

const (
	stateCategoryMenu appState = iota // Epics with completion badges
	stateScenarioMenu                 // Scenarios of the chosen epic
	statePlayer                       // A running walkthrough
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithCatalog skips loading scenarios from disk.
func WithCatalog(catalog *scenario.Catalog) AppOption {
	return func(a *App) {
		if catalog != nil {
			a.catalog = catalog
		}
	}
}

// WithSessionOptions appends options to every session the app opens.
func WithSessionOptions(opts ...session.Option) AppOption {
	return func(a *App) {
		a.sessionOpts = append(a.sessionOpts, opts...)
	}
}

// WithStartScenario opens a scenario as soon as the program starts.
func WithStartScenario(id string) AppOption {
	return func(a *App) {
		a.startID = strings.TrimSpace(id)
	}
}

// WithRouter lets bridge events reach the sessions the app opens.
func WithRouter(router *eventbridge.Router) AppOption {
	return func(a *App) {
		a.router = router
	}
}

// WithLogger injects the diagnostic logger handed to sessions.
func WithLogger(logger session.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	catalog *scenario.Catalog
	tracker *progress.Tracker
	logbook *logbook.Logbook
	logger  session.Logger
	router  *eventbridge.Router

	sessionOpts []session.Option
	startID     string

	// UI components
	categoryMenu list.Model
	scenarioMenu list.Model
	categoryID   string
	player       *playerView
	statusMsg    string

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// categoryItem implements list.Item for an epic.
type categoryItem struct {
	id        string
	name      string
	desc      string
	completed int
	total     int
}

func (i categoryItem) Title() string {
	badge := fmt.Sprintf("%d/%d", i.completed, i.total)
	if i.total > 0 && i.completed == i.total {
		badge = "✓ " + badge
	}
	return fmt.Sprintf("%s  %s", i.name, badge)
}
func (i categoryItem) Description() string { return i.desc }
func (i categoryItem) FilterValue() string { return i.name }

// scenarioItem implements list.Item for one scenario.
type scenarioItem struct {
	id    string
	title string
	desc  string
	done  bool
}

func (i scenarioItem) Title() string {
	if i.done {
		return "✓ " + i.title
	}
	return i.title
}
func (i scenarioItem) Description() string { return i.desc }
func (i scenarioItem) FilterValue() string { return i.id + " " + i.title }

// NewApp creates a new App instance
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	a := &App{
		state:   stateCategoryMenu,
		config:  cfg,
		tracker: progress.NewTracker(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.catalog == nil {
		catalog, err := scenario.BuildCatalog(builtin.Files, cfg.ScenarioDirs()...)
		if err != nil {
			return nil, fmt.Errorf("tui: load scenarios: %w", err)
		}
		a.catalog = catalog
	}
	lb, err := logbook.New(cfg.JournalPath())
	if err == nil {
		a.logbook = lb
		lb.Info("Walkthrough opened · %d scenario(s)", a.catalog.Len())
	}

	a.categoryMenu = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	a.categoryMenu.Title = "⬡ WALKTHROUGHS"
	a.categoryMenu.SetShowStatusBar(false)
	a.scenarioMenu = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	a.scenarioMenu.SetShowStatusBar(false)
	a.refreshMenus()

	a.statusMsg = "Enter → open    / → filter    q → quit"
	if a.catalog.Len() == 0 {
		a.statusMsg = "No scenarios found. Add YAML files under .walkthrough/scenarios."
	}
	return a, nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	if a.startID == "" {
		return nil
	}
	_, cmd := a.openScenario(a.startID)
	return cmd
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.categoryMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		a.scenarioMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		if a.player != nil {
			return a, a.player.Update(msg)
		}
		return a, nil

	case playerExitMsg:
		return a.closePlayer(msg)

	case modeChangedMsg:
		if err := a.config.SetPlaybackMode(string(msg.mode)); err != nil {
			a.logWarn("could not save playback mode: %v", err)
		}
		a.statusMsg = fmt.Sprintf("Mode: %s", msg.mode)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.Close()
			return a, tea.Quit
		}
		if a.state == statePlayer && a.player != nil {
			return a, a.player.Update(msg)
		}
		if a.filtering() {
			break
		}
		switch msg.String() {
		case "q":
			if a.state == stateCategoryMenu {
				a.Close()
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateScenarioMenu {
				a.state = stateCategoryMenu
				return a, nil
			}
		case "enter":
			switch a.state {
			case stateCategoryMenu:
				if item, ok := a.categoryMenu.SelectedItem().(categoryItem); ok {
					return a.openCategory(item.id)
				}
				return a, nil
			case stateScenarioMenu:
				if item, ok := a.scenarioMenu.SelectedItem().(scenarioItem); ok {
					return a.openScenario(item.id)
				}
				return a, nil
			}
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateCategoryMenu:
		a.categoryMenu, cmd = a.categoryMenu.Update(msg)
	case stateScenarioMenu:
		a.scenarioMenu, cmd = a.scenarioMenu.Update(msg)
	case statePlayer:
		if a.player != nil {
			cmd = a.player.Update(msg)
		}
	}
	return a, cmd
}

func (a *App) filtering() bool {
	switch a.state {
	case stateCategoryMenu:
		return a.categoryMenu.FilterState() == list.Filtering
	case stateScenarioMenu:
		return a.scenarioMenu.FilterState() == list.Filtering
	}
	return false
}

func (a *App) refreshMenus() {
	cats := a.catalog.Categories()
	items := make([]list.Item, 0, len(cats))
	for _, cat := range cats {
		completed, total := a.tracker.CategoryStats(cat)
		desc := strings.TrimSpace(cat.Description)
		if desc == "" {
			desc = fmt.Sprintf("%d scenario(s)", total)
		}
		items = append(items, categoryItem{id: cat.ID, name: cat.Name, desc: desc, completed: completed, total: total})
	}
	a.categoryMenu.SetItems(items)
	if a.categoryID != "" {
		a.fillScenarioMenu(a.categoryID)
	}
}

func (a *App) fillScenarioMenu(categoryID string) error {
	cat, err := a.catalog.Category(categoryID)
	if err != nil {
		return err
	}
	items := make([]list.Item, 0, len(cat.Scenarios))
	for _, sc := range cat.Scenarios {
		desc := strings.TrimSpace(sc.Story)
		if desc == "" {
			desc = fmt.Sprintf("%d step(s)", sc.Len())
		}
		items = append(items, scenarioItem{id: sc.ID, title: sc.Title(), desc: desc, done: a.tracker.Completed(sc.ID)})
	}
	a.scenarioMenu.Title = cat.Name
	a.scenarioMenu.SetItems(items)
	return nil
}

// openCategory switches to the scenario list of one epic.
func (a *App) openCategory(id string) (tea.Model, tea.Cmd) {
	if err := a.fillScenarioMenu(id); err != nil {
		a.statusMsg = err.Error()
		a.logError("%v", err)
		return a, nil
	}
	if id != a.categoryID {
		a.scenarioMenu.Select(0)
	}
	a.categoryID = id
	a.state = stateScenarioMenu
	a.statusMsg = "Enter → play    Esc → back"
	return a, nil
}

// openScenario starts a session for the scenario and shows the player.
func (a *App) openScenario(id string) (tea.Model, tea.Cmd) {
	sc, err := a.catalog.Scenario(id)
	if err != nil {
		a.statusMsg = err.Error()
		a.logError("open %s: %v", id, err)
		return a, nil
	}
	if a.player != nil {
		a.player.Close()
		a.player = nil
	}
	opts := []session.Option{
		session.WithTracker(a.tracker),
		session.WithJournal(a.logbook),
	}
	if a.logger != nil {
		opts = append(opts, session.WithLogger(a.logger))
	}
	if a.router != nil {
		opts = append(opts, session.WithRouter(a.router))
	}
	opts = append(opts, a.sessionOpts...)
	s, err := session.New(a.config, sc, opts...)
	if err != nil {
		a.statusMsg = fmt.Sprintf("Could not open %s: %v", sc.Title(), err)
		a.logError("%s", a.statusMsg)
		return a, nil
	}
	if catID := a.categoryOf(id); catID != "" {
		a.categoryID = catID
	}
	view := newPlayerView(s, sc.Epic)
	view.setWidth(a.width)
	a.player = view
	a.state = statePlayer
	a.statusMsg = fmt.Sprintf("Playing %s · session %s", sc.Title(), s.ID)
	return a, view.Init()
}

func (a *App) categoryOf(scenarioID string) string {
	for _, cat := range a.catalog.Categories() {
		for _, sc := range cat.Scenarios {
			if sc.ID == scenarioID {
				return cat.ID
			}
		}
	}
	return ""
}

func (a *App) closePlayer(msg playerExitMsg) (tea.Model, tea.Cmd) {
	if a.player != nil {
		a.player.Close()
		a.player = nil
	}
	if msg.completed {
		a.statusMsg = fmt.Sprintf("Completed %s", msg.scenarioID)
	} else {
		a.statusMsg = fmt.Sprintf("Left %s", msg.scenarioID)
	}
	a.logInfo("%s", a.statusMsg)
	a.refreshMenus()
	if a.categoryID != "" {
		a.state = stateScenarioMenu
	} else {
		a.state = stateCategoryMenu
	}
	return a, nil
}

// Close releases the open session, if any. Safe to call more than once.
func (a *App) Close() {
	if a.player != nil {
		a.player.Close()
		a.player = nil
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateCategoryMenu:
		content = a.categoryMenu.View()
	case stateScenarioMenu:
		content = a.scenarioMenu.View()
	case statePlayer:
		if a.player != nil {
			content = a.player.View()
		} else {
			content = "Loading scenario..."
		}
	}
	if strings.TrimSpace(content) == "" {
		content = "Nothing to show."
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ WALKTHROUGH")
	body := panelBoxStyle.Width(max(20, width-4)).Render(content)
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return panelBoxStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}
