package player

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// DefaultStepDuration applies to timed steps that do not set duration_ms.
const DefaultStepDuration = 4 * time.Second

var (
	// ErrInvalidScenario is returned by Load when the scenario has no steps.
	ErrInvalidScenario = errors.New("player: invalid scenario")
	// ErrOutOfRange is returned by JumpTo for an index outside the loaded steps.
	ErrOutOfRange = errors.New("player: index out of range")
)

// Observer is notified with the new current step after every step change.
type Observer func(step scenario.Step, index int)

// EffectSink receives a step's effect descriptor before observers are notified.
type EffectSink interface {
	Apply(scenario.Effect)
}

// Logger records player diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customizes Player construction.
type Option func(*Player)

// WithClock overrides the wall clock (tests use ManualClock).
func WithClock(clock Clock) Option {
	return func(p *Player) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithEffectSink attaches the sink that receives step effects.
func WithEffectSink(sink EffectSink) Option {
	return func(p *Player) {
		p.sink = sink
	}
}

// WithFallbackDuration overrides DefaultStepDuration.
func WithFallbackDuration(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.fallback = d
		}
	}
}

// WithLogger injects a diagnostic logger.
func WithLogger(logger Logger) Option {
	return func(p *Player) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Player drives one scenario's steps forward and backward, optionally
// auto-advancing on a timer, and tells observers about every step change.
//
// All methods are safe for concurrent use. Notifications are delivered in
// order by one goroutine at a time; an observer that calls back into the
// player has its own notification queued behind the one it is handling.
type Player struct {
	mu       sync.Mutex
	clock    Clock
	sink     EffectSink
	logger   Logger
	fallback time.Duration

	scenario scenario.Scenario
	loaded   bool
	closed   bool
	index    int
	mode     Mode
	playing  bool
	visited  map[int]struct{}

	timer      Timer
	generation uint64
	stepStart  time.Time
	frozen     float64

	observers []*observer
	queue     []notification
	draining  bool
}

type observer struct {
	fn     Observer
	active atomic.Bool
}

type notification struct {
	index     int
	step      scenario.Step
	observers []*observer
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	cancel func()
}

// Close stops further notifications. It is safe to call more than once.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// New returns an idle player.
func New(opts ...Option) *Player {
	p := &Player{
		clock:    realClock{},
		logger:   nopLogger{},
		fallback: DefaultStepDuration,
		mode:     ModeManual,
		visited:  map[int]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Load replaces the active scenario, resets to the first step in manual mode
// and stops any running timer. A scenario without steps is rejected and the
// player keeps its previous state.
func (p *Player) Load(sc scenario.Scenario) error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidScenario, sc.ID)
	}
	p.mu.Lock()
	p.cancelTimerLocked()
	p.scenario = sc.Clone()
	p.loaded = true
	p.index = 0
	p.mode = ModeManual
	p.playing = false
	p.visited = map[int]struct{}{0: {}}
	p.resetProgressLocked()
	p.enqueueLocked()
	p.logger.Printf("player: loaded %s (%d steps)", sc.ID, len(sc.Steps))
	p.mu.Unlock()
	p.flush()
	return nil
}

// Next advances one step. At the last step it is a no-op and nobody is notified.
func (p *Player) Next() Position {
	p.mu.Lock()
	p.moveLocked(p.index + 1)
	pos := p.positionLocked()
	p.mu.Unlock()
	p.flush()
	return pos
}

// Prev goes back one step. At the first step it is a no-op.
func (p *Player) Prev() Position {
	p.mu.Lock()
	p.moveLocked(p.index - 1)
	pos := p.positionLocked()
	p.mu.Unlock()
	p.flush()
	return pos
}

// JumpTo makes index current. Indices outside [0, len-1] fail with
// ErrOutOfRange and leave the state untouched.
func (p *Player) JumpTo(index int) (Position, error) {
	p.mu.Lock()
	if !p.loaded || index < 0 || index >= len(p.scenario.Steps) {
		length := len(p.scenario.Steps)
		p.mu.Unlock()
		return Position{}, fmt.Errorf("player: jump to %d (have %d steps): %w", index, length, ErrOutOfRange)
	}
	p.moveLocked(index)
	pos := p.positionLocked()
	p.mu.Unlock()
	p.flush()
	return pos, nil
}

// Restart returns to the first step and clears the visited bookkeeping.
// Observers are always notified, even when the first step was already current.
func (p *Player) Restart() Position {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return Position{Index: -1}
	}
	p.index = 0
	p.visited = map[int]struct{}{0: {}}
	p.resetProgressLocked()
	if p.playing {
		p.scheduleLocked()
	}
	p.enqueueLocked()
	pos := p.positionLocked()
	p.mu.Unlock()
	p.flush()
	return pos
}

// SkipToEnd jumps to the last step and stops timed playback.
func (p *Player) SkipToEnd() Position {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return Position{Index: -1}
	}
	p.moveLocked(len(p.scenario.Steps) - 1)
	if p.playing {
		p.stopLocked()
	}
	p.frozen = 1
	pos := p.positionLocked()
	p.mu.Unlock()
	p.flush()
	return pos
}

// SetMode switches between manual and timed playback. Switching to manual
// cancels any pending auto-advance.
func (p *Player) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || p.mode == mode {
		return
	}
	switch mode {
	case ModeManual:
		p.stopLocked()
		p.mode = ModeManual
	case ModeTimed:
		p.mode = ModeTimed
	}
}

// Play starts auto-advance in timed mode. It does nothing in manual mode.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || p.closed || p.mode != ModeTimed || p.playing {
		return
	}
	p.playing = true
	p.resetProgressLocked()
	p.scheduleLocked()
}

// Pause cancels the pending auto-advance without moving.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeTimed || !p.playing {
		return
	}
	p.frozen = p.progressLocked()
	p.stopLocked()
}

// Signal is an external completion trigger for the current step, such as
// narration finishing. It only counts while timed playback is running and
// stepID names the current step; it then acts like the timer firing.
func (p *Player) Signal(stepID string) bool {
	p.mu.Lock()
	if !p.loaded || p.mode != ModeTimed || !p.playing || p.scenario.Steps[p.index].ID != stepID {
		p.mu.Unlock()
		return false
	}
	p.cancelTimerLocked()
	p.advanceLocked()
	p.mu.Unlock()
	p.flush()
	return true
}

// Subscribe registers an observer. Observers run in registration order.
func (p *Player) Subscribe(fn Observer) Subscription {
	if fn == nil {
		return Subscription{}
	}
	obs := &observer{fn: fn}
	obs.active.Store(true)
	p.mu.Lock()
	p.observers = append(p.observers, obs)
	p.mu.Unlock()
	return Subscription{cancel: func() {
		obs.active.Store(false)
		p.removeObserver(obs)
	}}
}

// CurrentStep returns a copy of the current step. ok is false before Load.
func (p *Player) CurrentStep() (scenario.Step, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return scenario.Step{}, false
	}
	return p.scenario.Steps[p.index].Clone(), true
}

// Scenario returns a copy of the loaded scenario.
func (p *Player) Scenario() (scenario.Scenario, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return scenario.Scenario{}, false
	}
	return p.scenario.Clone(), true
}

// State returns a snapshot of the playback state.
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := PlaybackState{
		Mode:    p.mode,
		Playing: p.playing,
		Status:  p.statusLocked(),
		Index:   p.index,
	}
	if !p.loaded {
		state.Index = -1
		return state
	}
	state.ScenarioID = p.scenario.ID
	state.Length = len(p.scenario.Steps)
	state.Visited = len(p.visited)
	state.StepDuration = p.durationLocked()
	state.Progress = p.progressLocked()
	return state
}

// Visited returns the indices that have been current since the last Load or
// Restart, in ascending order.
func (p *Player) Visited() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, 0, len(p.visited))
	for idx := range p.visited {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// Close stops playback and drops every observer. Used when the walkthrough
// view goes away.
func (p *Player) Close() {
	p.mu.Lock()
	p.stopLocked()
	p.closed = true
	for _, obs := range p.observers {
		obs.active.Store(false)
	}
	p.observers = nil
	p.queue = nil
	p.mu.Unlock()
}

func (p *Player) moveLocked(target int) bool {
	if !p.loaded || target < 0 || target >= len(p.scenario.Steps) || target == p.index {
		return false
	}
	p.index = target
	p.visited[target] = struct{}{}
	p.resetProgressLocked()
	if p.playing {
		p.scheduleLocked()
	}
	p.enqueueLocked()
	return true
}

func (p *Player) advanceLocked() {
	if p.index >= len(p.scenario.Steps)-1 {
		p.stopLocked()
		p.frozen = 1
		p.logger.Printf("player: %s finished at step %d", p.scenario.ID, p.index+1)
		return
	}
	p.moveLocked(p.index + 1)
}

func (p *Player) stopLocked() {
	p.playing = false
	p.cancelTimerLocked()
}

func (p *Player) scheduleLocked() {
	p.cancelTimerLocked()
	gen := p.generation
	p.stepStart = p.clock.Now()
	p.timer = p.clock.AfterFunc(p.durationLocked(), func() {
		p.onTimer(gen)
	})
}

func (p *Player) cancelTimerLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) onTimer(gen uint64) {
	p.mu.Lock()
	if gen != p.generation || !p.playing {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.advanceLocked()
	p.mu.Unlock()
	p.flush()
}

func (p *Player) durationLocked() time.Duration {
	if d := p.scenario.Steps[p.index].Duration(); d > 0 {
		return d
	}
	return p.fallback
}

func (p *Player) resetProgressLocked() {
	p.frozen = 0
	p.stepStart = p.clock.Now()
}

func (p *Player) progressLocked() float64 {
	if !p.playing {
		return p.frozen
	}
	total := p.durationLocked()
	elapsed := p.clock.Now().Sub(p.stepStart)
	if elapsed <= 0 || total <= 0 {
		return 0
	}
	if elapsed >= total {
		return 1
	}
	return float64(elapsed) / float64(total)
}

func (p *Player) statusLocked() Status {
	switch {
	case !p.loaded:
		return StatusIdle
	case p.mode == ModeManual:
		return StatusManualReady
	case p.playing:
		return StatusTimedPlaying
	default:
		return StatusTimedPaused
	}
}

func (p *Player) positionLocked() Position {
	if !p.loaded {
		return Position{Index: -1}
	}
	return Position{Index: p.index, Step: p.scenario.Steps[p.index].Clone()}
}

func (p *Player) enqueueLocked() {
	if p.closed {
		return
	}
	observers := make([]*observer, len(p.observers))
	copy(observers, p.observers)
	p.queue = append(p.queue, notification{
		index:     p.index,
		step:      p.scenario.Steps[p.index].Clone(),
		observers: observers,
	})
}

// flush delivers queued notifications. Only one goroutine drains at a time;
// others leave their entries for the active drainer.
func (p *Player) flush() {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	for len(p.queue) > 0 {
		n := p.queue[0]
		p.queue = p.queue[1:]
		sink := p.sink
		p.mu.Unlock()
		if sink != nil && n.step.HasEffect() {
			sink.Apply(n.step.Effect.Clone())
		}
		for _, obs := range n.observers {
			if obs.active.Load() {
				obs.fn(n.step, n.index)
			}
		}
		p.mu.Lock()
	}
	p.draining = false
	p.mu.Unlock()
}

func (p *Player) removeObserver(target *observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, obs := range p.observers {
		if obs == target {
			p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
			return
		}
	}
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
