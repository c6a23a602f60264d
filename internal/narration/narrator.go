package narration

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/kingrea/walkthrough/internal/scenario"
)

// Signaler receives completion signals; *player.Player satisfies it.
type Signaler interface {
	Signal(stepID string) bool
}

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Narrator speaks every step that becomes current and forwards the end of
// playback to the player as a completion signal. Errors count as completion
// so a broken audio file never stalls timed playback.
type Narrator struct {
	driver   Driver
	signal   Signaler
	audioDir string
	logger   Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewNarrator wires driver to signal. audioDir may be empty.
func NewNarrator(driver Driver, signal Signaler, audioDir string, logger Logger) *Narrator {
	if driver == nil {
		driver = NopDriver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Narrator{
		driver:   driver,
		signal:   signal,
		audioDir: audioDir,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Observe is a player observer.
func (n *Narrator) Observe(step scenario.Step, _ int) {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return
	}
	cue := n.cueFor(step)
	stepID := step.ID
	err := n.driver.Speak(n.ctx, cue, func(err error) {
		if err != nil {
			n.printf("narration: %s ended with error: %v", stepID, err)
		}
		if n.signal != nil {
			n.signal.Signal(stepID)
		}
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNoOutput):
		// nothing to play; the step timer alone decides
	default:
		n.printf("narration: %s: %v", stepID, err)
	}
}

// Close stops playback and ignores later steps.
func (n *Narrator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()
	n.driver.Stop()
	n.cancel()
}

func (n *Narrator) cueFor(step scenario.Step) Cue {
	cue := Cue{StepID: step.ID, Text: step.Narration}
	if cue.Text == "" {
		cue.Text = step.Description
	}
	if n.audioDir != "" {
		path := AudioPath(n.audioDir, step.ID)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			cue.AudioPath = path
		}
	}
	return cue
}

func (n *Narrator) printf(format string, args ...any) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}
