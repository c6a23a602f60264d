package eventbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/scenario"
)

func controllerFixture(t *testing.T) (*player.Player, *player.ManualClock) {
	t.Helper()
	clock := player.NewManualClock(time.Unix(1730000000, 0))
	p := player.New(player.WithClock(clock))
	t.Cleanup(p.Close)
	sc := scenario.Scenario{ID: "remote", Steps: []scenario.Step{
		{ID: "r-1", Title: "One", DurationMS: 30000},
		{ID: "r-2", Title: "Two", DurationMS: 30000},
		{ID: "r-3", Title: "Three", DurationMS: 30000},
	}}
	if err := p.Load(sc); err != nil {
		t.Fatalf("load: %v", err)
	}
	return p, clock
}

func mustEvent(t *testing.T, eventType string, payload any) Event {
	t.Helper()
	evt, err := NewEvent("remote-session", eventType, payload)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return evt
}

func TestControllerAppliesNavigation(t *testing.T) {
	p, _ := controllerFixture(t)
	ctrl := NewController(Subscription{}, p, nil)

	if err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionNext})); err != nil {
		t.Fatalf("next: %v", err)
	}
	if idx := p.State().Index; idx != 1 {
		t.Fatalf("index after next = %d, want 1", idx)
	}
	two := 2
	if err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionJump, Index: &two})); err != nil {
		t.Fatalf("jump: %v", err)
	}
	if idx := p.State().Index; idx != 2 {
		t.Fatalf("index after jump = %d, want 2", idx)
	}
	nine := 9
	err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionJump, Index: &nine}))
	if !errors.Is(err, player.ErrOutOfRange) {
		t.Fatalf("jump out of range err = %v", err)
	}
	if err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionRestart})); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if idx := p.State().Index; idx != 0 {
		t.Fatalf("index after restart = %d, want 0", idx)
	}
}

func TestControllerModeAndNarrationSignal(t *testing.T) {
	p, clock := controllerFixture(t)
	ctrl := NewController(Subscription{}, p, nil)

	err := ctrl.Apply(mustEvent(t, TypeNarrationFinished, nil))
	if !errors.Is(err, ErrStaleSignal) {
		t.Fatalf("signal in manual mode err = %v, want stale", err)
	}

	if err := ctrl.Apply(mustEvent(t, TypeSetMode, ModePayload{Mode: "timed"})); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionPlay})); err != nil {
		t.Fatalf("play: %v", err)
	}
	if status := p.State().Status; status != player.StatusTimedPlaying {
		t.Fatalf("status = %s, want timed-playing", status)
	}

	done := mustEvent(t, TypeNarrationFinished, nil)
	done.StepID = "r-1"
	if err := ctrl.Apply(done); err != nil {
		t.Fatalf("narration finished: %v", err)
	}
	if idx := p.State().Index; idx != 1 {
		t.Fatalf("index after signal = %d, want 1", idx)
	}
	if err := ctrl.Apply(done); !errors.Is(err, ErrStaleSignal) {
		t.Fatalf("repeated signal err = %v, want stale", err)
	}

	if err := ctrl.Apply(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionPause})); err != nil {
		t.Fatalf("pause: %v", err)
	}
	clock.Advance(time.Minute)
	if idx := p.State().Index; idx != 1 {
		t.Fatalf("paused player advanced to %d", idx)
	}
	if err := ctrl.Apply(mustEvent(t, TypeSetMode, ModePayload{Mode: "looping"})); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestControllerRunConsumesSubscription(t *testing.T) {
	p, _ := controllerFixture(t)
	router := NewRouter()
	sub := router.Subscribe("remote-session")
	ctrl := NewController(sub, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finished := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(finished)
	}()

	router.Route(mustEvent(t, TypeNavigate, NavigatePayload{Action: ActionSkip}))
	deadline := time.Now().Add(time.Second)
	for p.State().Index != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("controller did not apply skip")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sub.Close()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after subscription closed")
	}
}
