// Package session assembles one walkthrough run: a player with the mock board
// as its effect sink, progress tracking, narration, the session journal and,
// when a bridge router is attached, remote control.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kingrea/walkthrough/internal/config"
	"github.com/kingrea/walkthrough/internal/effects"
	"github.com/kingrea/walkthrough/internal/eventbridge"
	"github.com/kingrea/walkthrough/internal/logbook"
	"github.com/kingrea/walkthrough/internal/narration"
	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/progress"
	"github.com/kingrea/walkthrough/internal/scenario"
)

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customizes a session.
type Option func(*options)

type options struct {
	clock   player.Clock
	tracker *progress.Tracker
	journal *logbook.Logbook
	logger  Logger
	driver  narration.Driver
	router  *eventbridge.Router
	mode    *player.Mode
}

// WithClock overrides the player clock.
func WithClock(clock player.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithTracker shares a progress tracker across sessions.
func WithTracker(tracker *progress.Tracker) Option {
	return func(o *options) { o.tracker = tracker }
}

// WithJournal records transitions in a logbook.
func WithJournal(journal *logbook.Logbook) Option {
	return func(o *options) { o.journal = journal }
}

// WithLogger injects the diagnostic logger.
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNarrationDriver replaces the driver chosen from config.
func WithNarrationDriver(driver narration.Driver) Option {
	return func(o *options) { o.driver = driver }
}

// WithRouter subscribes the session to bridge events.
func WithRouter(router *eventbridge.Router) Option {
	return func(o *options) { o.router = router }
}

// WithMode overrides the configured starting mode.
func WithMode(mode player.Mode) Option {
	return func(o *options) { o.mode = &mode }
}

// Session is one walkthrough run.
type Session struct {
	ID       string
	Scenario scenario.Scenario
	Player   *player.Player
	Board    *effects.Board
	Tracker  *progress.Tracker

	narrator *narration.Narrator
	journal  *logbook.Logbook
	logger   Logger
	router   *eventbridge.Router
	remote   eventbridge.Subscription
	cancel   context.CancelFunc
	bridge   sync.WaitGroup

	mu     sync.Mutex
	subs   []player.Subscription
	closed bool
}

// New builds a session for sc and loads it. cfg may be nil.
func New(cfg *config.Config, sc scenario.Scenario, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.tracker == nil {
		o.tracker = progress.NewTracker()
	}
	if o.driver == nil {
		o.driver = driverFromConfig(cfg)
	}

	s := &Session{
		ID:       uuid.NewString(),
		Scenario: sc.Clone(),
		Board:    effects.NewBoard(),
		Tracker:  o.tracker,
		journal:  o.journal,
		logger:   o.logger,
		router:   o.router,
	}
	mux := effects.NewMux(o.logger)
	s.Board.Register(mux)

	playerOpts := []player.Option{player.WithEffectSink(mux)}
	if o.clock != nil {
		playerOpts = append(playerOpts, player.WithClock(o.clock))
	}
	if o.logger != nil {
		playerOpts = append(playerOpts, player.WithLogger(o.logger))
	}
	if cfg != nil {
		playerOpts = append(playerOpts, player.WithFallbackDuration(cfg.FallbackDuration()))
	}
	s.Player = player.New(playerOpts...)

	audioDir := ""
	if cfg != nil {
		audioDir = cfg.AudioDir()
	}
	s.narrator = narration.NewNarrator(o.driver, s.Player, audioDir, o.logger)

	s.track(s.Player.Subscribe(s.recordStep))
	s.track(s.Player.Subscribe(s.Tracker.Observe(s.Scenario)))
	s.track(s.Player.Subscribe(s.narrator.Observe))

	s.journal.Info("session %s: opened %s (%s)", s.shortID(), s.Scenario.ID, s.Scenario.Title())
	if err := s.Player.Load(s.Scenario); err != nil {
		s.journal.Error("session %s: %v", s.shortID(), err)
		s.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	mode := player.ModeManual
	if cfg != nil {
		if parsed, err := player.ParseMode(cfg.PlaybackMode()); err == nil {
			mode = parsed
		}
	}
	if o.mode != nil {
		mode = *o.mode
	}
	s.Player.SetMode(mode)
	if mode == player.ModeTimed && cfg != nil && cfg.Project.Playback.Autoplay {
		s.Player.Play()
	}

	if s.router != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.remote = s.router.Subscribe(s.ID)
		ctrl := eventbridge.NewController(s.remote, s.Player, o.logger)
		s.bridge.Add(1)
		go func() {
			defer s.bridge.Done()
			ctrl.Run(ctx)
		}()
	}
	return s, nil
}

// Subscribe adds an observer that is removed when the session closes.
func (s *Session) Subscribe(fn player.Observer) player.Subscription {
	sub := s.Player.Subscribe(fn)
	s.track(sub)
	return sub
}

// Close stops playback, narration and remote control. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	s.narrator.Close()
	if state := s.Player.State(); state.Length > 0 {
		s.journal.Info("session %s: closed %s at step %d/%d", s.shortID(), s.Scenario.ID, state.Index+1, state.Length)
	}
	s.Player.Close()
	if s.cancel != nil {
		s.cancel()
		s.remote.Close()
		s.bridge.Wait()
	}
	if s.router != nil {
		s.router.Forget(s.ID)
	}
}

func (s *Session) track(sub player.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.Close()
		return
	}
	s.subs = append(s.subs, sub)
}

func (s *Session) recordStep(step scenario.Step, index int) {
	s.journal.Info("session %s: %s", s.shortID(), StepLine(step, index, len(s.Scenario.Steps)))
}

func (s *Session) shortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// StepLine formats a transition as "step 2/4 · a1-2 Activate Nucleus Extension".
func StepLine(step scenario.Step, index, total int) string {
	return fmt.Sprintf("step %d/%d · %s %s", index+1, total, step.ID, step.Title)
}

func driverFromConfig(cfg *config.Config) narration.Driver {
	if cfg == nil || !cfg.Project.Narration.Enabled {
		return narration.NopDriver{}
	}
	n := cfg.Project.Narration
	return narration.NewCommandDriver(n.AudioCommand, n.SpeechCommand)
}
