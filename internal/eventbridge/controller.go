package eventbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/kingrea/walkthrough/internal/player"
)

// ErrStaleSignal is returned when a narration_finished event names a step
// that is no longer current, or arrives outside timed playback.
var ErrStaleSignal = errors.New("eventbridge: stale completion signal")

// PlayerControl is the part of *player.Player the controller drives.
type PlayerControl interface {
	Next() player.Position
	Prev() player.Position
	Restart() player.Position
	SkipToEnd() player.Position
	JumpTo(index int) (player.Position, error)
	Play()
	Pause()
	SetMode(mode player.Mode)
	Signal(stepID string) bool
}

// Controller applies bridge events for one session to its player.
type Controller struct {
	sub    Subscription
	target PlayerControl
	logger Logger
}

// NewController binds a subscription to a player. logger may be nil.
func NewController(sub Subscription, target PlayerControl, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{sub: sub, target: target, logger: logger}
}

// Run applies events until ctx is done or the subscription is closed.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.sub.Events:
			if !ok {
				return
			}
			if err := c.Apply(evt); err != nil {
				c.logger.Printf("eventbridge: session %s: %s %s: %v", c.sub.SessionID, evt.Type, evt.EventID, err)
			}
		}
	}
}

// Apply executes a single event against the player.
func (c *Controller) Apply(evt Event) error {
	switch evt.Type {
	case TypeNarrationFinished:
		if !c.target.Signal(evt.StepID) {
			return fmt.Errorf("%w: %s", ErrStaleSignal, evt.StepID)
		}
		return nil
	case TypeNavigate:
		nav, err := evt.Navigate()
		if err != nil {
			return err
		}
		return c.navigate(nav)
	case TypeSetMode:
		payload, err := evt.Mode()
		if err != nil {
			return err
		}
		mode, err := player.ParseMode(payload.Mode)
		if err != nil {
			return err
		}
		c.target.SetMode(mode)
		return nil
	default:
		return fmt.Errorf("eventbridge: unsupported event type %q", evt.Type)
	}
}

func (c *Controller) navigate(nav NavigatePayload) error {
	if err := nav.validate(); err != nil {
		return err
	}
	switch nav.Action {
	case ActionNext:
		c.target.Next()
	case ActionPrev:
		c.target.Prev()
	case ActionRestart:
		c.target.Restart()
	case ActionSkip:
		c.target.SkipToEnd()
	case ActionPlay:
		c.target.Play()
	case ActionPause:
		c.target.Pause()
	case ActionJump:
		if _, err := c.target.JumpTo(*nav.Index); err != nil {
			return err
		}
	}
	return nil
}
