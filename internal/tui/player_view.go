package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/walkthrough/internal/effects"
	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/session"
)

const playbackRefreshInterval = 200 * time.Millisecond

var (
	labelStyleCurrent = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleVisited = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	labelStylePending = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	labelStylePlaying = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStylePaused  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	narrationStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#DDDDDD")).Italic(true)
	sectionTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	panelBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// stepMsg is delivered whenever the session's player makes a step current.
type stepMsg struct {
	sessionID string
	index     int
	stepID    string
}

type playbackTickMsg struct {
	sessionID string
}

// playerExitMsg asks the app to close the player and return to the menus.
type playerExitMsg struct {
	scenarioID string
	completed  bool
}

// modeChangedMsg lets the app persist the chosen mode.
type modeChangedMsg struct {
	mode player.Mode
}

type playerKeyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Restart key.Binding
	Skip    key.Binding
	Toggle  key.Binding
	Mode    key.Binding
	Help    key.Binding
	Back    key.Binding
}

func defaultPlayerKeys() playerKeyMap {
	return playerKeyMap{
		Next:    key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/n", "next")),
		Prev:    key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/p", "previous")),
		Restart: key.NewBinding(key.WithKeys("r", "home"), key.WithHelp("r", "restart")),
		Skip:    key.NewBinding(key.WithKeys("e", "end"), key.WithHelp("e", "skip to end")),
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Mode:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual/timed")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Back:    key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc", "back")),
	}
}

func (k playerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Toggle, k.Mode, k.Help, k.Back}
}

func (k playerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Restart, k.Skip},
		{k.Toggle, k.Mode},
		{k.Help, k.Back},
	}
}

type playerView struct {
	session  *session.Session
	category string
	steps    chan stepMsg
	done     chan struct{}
	keys     playerKeyMap
	help     help.Model
	position progress.Model
	timer    progress.Model
	lastStep string
	width    int
	closed   bool
}

func newPlayerView(s *session.Session, category string) *playerView {
	v := &playerView{
		session:  s,
		category: category,
		steps:    make(chan stepMsg, 32),
		done:     make(chan struct{}),
		keys:     defaultPlayerKeys(),
		help:     help.New(),
		position: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		timer:    progress.New(progress.WithSolidFill("#5B8DEF"), progress.WithoutPercentage()),
	}
	if step, ok := s.Player.CurrentStep(); ok {
		v.lastStep = step.ID
	}
	s.Subscribe(v.forward)
	return v
}

// forward runs on the player's notification goroutine. Renders re-read the
// player state, so a full channel only drops a redraw hint.
func (v *playerView) forward(step scenario.Step, index int) {
	select {
	case v.steps <- stepMsg{sessionID: v.session.ID, index: index, stepID: step.ID}:
	default:
	}
}

// Init starts listening for step changes and the refresh tick.
func (v *playerView) Init() tea.Cmd {
	return tea.Batch(v.listen(), v.tick())
}

func (v *playerView) listen() tea.Cmd {
	steps, done := v.steps, v.done
	return func() tea.Msg {
		select {
		case msg := <-steps:
			return msg
		case <-done:
			return nil
		}
	}
}

func (v *playerView) tick() tea.Cmd {
	id := v.session.ID
	return tea.Tick(playbackRefreshInterval, func(time.Time) tea.Msg {
		return playbackTickMsg{sessionID: id}
	})
}

// Update handles player keys and the messages the view itself produces.
func (v *playerView) Update(msg tea.Msg) tea.Cmd {
	if v.closed {
		return nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.setWidth(msg.Width)
		return nil
	case stepMsg:
		if msg.sessionID != v.session.ID {
			return nil
		}
		v.lastStep = msg.stepID
		return v.listen()
	case playbackTickMsg:
		if msg.sessionID != v.session.ID {
			return nil
		}
		return v.tick()
	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return nil
}

func (v *playerView) handleKey(msg tea.KeyMsg) tea.Cmd {
	p := v.session.Player
	switch {
	case key.Matches(msg, v.keys.Next):
		p.Next()
	case key.Matches(msg, v.keys.Prev):
		p.Prev()
	case key.Matches(msg, v.keys.Restart):
		p.Restart()
	case key.Matches(msg, v.keys.Skip):
		p.SkipToEnd()
	case key.Matches(msg, v.keys.Toggle):
		state := p.State()
		if state.Mode != player.ModeTimed {
			return nil
		}
		if state.Playing {
			p.Pause()
		} else {
			p.Play()
		}
	case key.Matches(msg, v.keys.Mode):
		next := player.ModeTimed
		if p.State().Mode == player.ModeTimed {
			next = player.ModeManual
		}
		p.SetMode(next)
		return func() tea.Msg { return modeChangedMsg{mode: next} }
	case key.Matches(msg, v.keys.Help):
		v.help.ShowAll = !v.help.ShowAll
	case key.Matches(msg, v.keys.Back):
		id := v.session.Scenario.ID
		completed := v.session.Tracker.Completed(id)
		return func() tea.Msg { return playerExitMsg{scenarioID: id, completed: completed} }
	}
	return nil
}

func (v *playerView) setWidth(width int) {
	v.width = width
	barWidth := max(10, min(60, width-24))
	v.position.Width = barWidth
	v.timer.Width = barWidth
	v.help.Width = width
}

// Close stops the listener and the session.
func (v *playerView) Close() {
	if v.closed {
		return
	}
	v.closed = true
	close(v.done)
	v.session.Close()
}

// View renders the scenario header, step rail, current step and mock board.
func (v *playerView) View() string {
	sc := v.session.Scenario
	state := v.session.Player.State()
	step, ok := v.session.Player.CurrentStep()

	var sections []string
	title := sectionTitleStyle.Render(sc.Title())
	if v.category != "" {
		title = fmt.Sprintf("%s %s", title, detailTextStyle.Render("· "+v.category))
	}
	sections = append(sections, title)
	if story := strings.TrimSpace(sc.Story); story != "" {
		sections = append(sections, detailTextStyle.Render(story))
	}
	sections = append(sections, "", v.renderPosition(state), v.renderRail(state))
	if ok {
		sections = append(sections, "", v.renderStep(step))
	}
	if board := v.renderBoard(v.session.Board.Snapshot()); board != "" {
		sections = append(sections, "", board)
	}
	sections = append(sections, "", v.help.View(v.keys))
	return strings.Join(sections, "\n")
}

func (v *playerView) renderPosition(state player.PlaybackState) string {
	if state.Length == 0 {
		return labelStylePending.Render("No steps loaded")
	}
	fraction := float64(state.Index+1) / float64(state.Length)
	line := fmt.Sprintf("%s  %d/%d  %s", v.position.ViewAs(fraction), state.Index+1, state.Length, statusLabel(state))
	if state.Mode != player.ModeTimed {
		return line
	}
	remaining := time.Duration(float64(state.StepDuration) * (1 - state.Progress)).Round(100 * time.Millisecond)
	timerLine := fmt.Sprintf("%s  %s left", v.timer.ViewAs(state.Progress), remaining)
	return line + "\n" + timerLine
}

func statusLabel(state player.PlaybackState) string {
	text := fmt.Sprintf("[%s]", state.Status.FriendlyName())
	switch state.Status {
	case player.StatusTimedPlaying:
		return labelStylePlaying.Render(text)
	case player.StatusTimedPaused:
		return labelStylePaused.Render(text)
	default:
		return labelStyleDefault.Render(text)
	}
}

func (v *playerView) renderRail(state player.PlaybackState) string {
	visited := map[int]bool{}
	for _, idx := range v.session.Player.Visited() {
		visited[idx] = true
	}
	marks := make([]string, state.Length)
	for i := 0; i < state.Length; i++ {
		switch {
		case i == state.Index:
			marks[i] = labelStyleCurrent.Render("◉")
		case visited[i]:
			marks[i] = labelStyleVisited.Render("●")
		default:
			marks[i] = labelStylePending.Render("○")
		}
	}
	return strings.Join(marks, " ")
}

func (v *playerView) renderStep(step scenario.Step) string {
	lines := []string{labelStyleCurrent.Render(step.Title)}
	if desc := strings.TrimSpace(step.Description); desc != "" {
		lines = append(lines, desc)
	}
	if narration := strings.TrimSpace(step.Narration); narration != "" {
		lines = append(lines, narrationStyle.Render("“"+narration+"”"))
	}
	var hints []string
	if step.Highlight != "" {
		hints = append(hints, "highlight "+step.Highlight)
	}
	if step.Pointer != nil {
		hints = append(hints, fmt.Sprintf("pointer %.0f%%,%.0f%%", step.Pointer.X, step.Pointer.Y))
	}
	if step.HasEffect() {
		hints = append(hints, "effect "+step.Effect.Kind)
	}
	if len(hints) > 0 {
		lines = append(lines, detailTextStyle.Render(strings.Join(hints, " · ")))
	}
	return panelBoxStyle.Render(strings.Join(lines, "\n"))
}

func (v *playerView) renderBoard(board effects.BoardState) string {
	if board.Version == 0 {
		return ""
	}
	panel := "closed"
	if board.PanelOpen {
		panel = "open"
	}
	lines := []string{sectionTitleStyle.Render("TASK BOARD") + detailTextStyle.Render(" · panel "+panel)}
	if board.Highlight != "" {
		lines = append(lines, "Focus: "+board.Highlight)
	}
	if ctx := board.Context; ctx != nil {
		lines = append(lines, fmt.Sprintf("Context: %s · %s %s (%.0f%%)", ctx.ClientName, ctx.TaskID, ctx.TaskTitle, ctx.Confidence*100))
	}
	if len(board.Fields) > 0 {
		names := make([]string, 0, len(board.Fields))
		for name := range board.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("%s: %s", name, board.Fields[name]))
		}
	}
	if board.Sync.Status != "" && board.Sync.Status != effects.SyncIdle {
		lines = append(lines, renderSync(board.Sync))
	}
	if job := board.Job; job != nil {
		lines = append(lines, fmt.Sprintf("Job %s by %s: %s", job.ID, job.Agent, strings.Join(job.Deliverables, ", ")))
	}
	for _, comment := range board.Comments {
		lines = append(lines, "💬 "+comment)
	}
	if n := len(board.Updates); n > 0 {
		last := board.Updates[n-1]
		lines = append(lines, detailTextStyle.Render(fmt.Sprintf("last update: %s %s", last.Kind, last.Summary)))
	}
	return panelBoxStyle.Render(strings.Join(lines, "\n"))
}

func renderSync(sync effects.SyncState) string {
	text := fmt.Sprintf("Sync %s", sync.Status)
	if sync.Target != "" {
		text += " → " + sync.Target
	}
	if sync.Attempts > 1 {
		text += fmt.Sprintf(" (attempt %d)", sync.Attempts)
	}
	if sync.Message != "" {
		text += ": " + sync.Message
	}
	switch sync.Status {
	case effects.SyncFailed:
		return labelStyleCurrent.Render(text)
	case effects.SyncSucceeded:
		return labelStyleVisited.Render(text)
	default:
		return labelStylePaused.Render(text)
	}
}
