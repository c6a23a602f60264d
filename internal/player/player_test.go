package player

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/walkthrough/internal/scenario"
)

func makeScenario(id string, durations ...int64) scenario.Scenario {
	sc := scenario.Scenario{ID: id, Name: id}
	for i, d := range durations {
		sc.Steps = append(sc.Steps, scenario.Step{
			ID:         fmt.Sprintf("%s-%d", id, i+1),
			Title:      fmt.Sprintf("Step %d", i+1),
			DurationMS: d,
		})
	}
	return sc
}

func newTestPlayer(t *testing.T, opts ...Option) (*Player, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Unix(1730000000, 0))
	p := New(append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(p.Close)
	return p, clock
}

func TestTimedPlaybackStopsAtLastStep(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("three", 1000, 1000, 1000)))
	p.SetMode(ModeTimed)
	assert.Equal(t, StatusTimedPaused, p.State().Status)
	p.Play()
	assert.Equal(t, StatusTimedPlaying, p.State().Status)

	clock.Advance(3000 * time.Millisecond)

	state := p.State()
	assert.Equal(t, 2, state.Index)
	assert.False(t, state.Playing)
	assert.Equal(t, StatusTimedPaused, state.Status)
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, p.State().Index, "playback must not wrap to the first step")
}

func TestSingleStepScenario(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("one", 0)))

	assert.Equal(t, 0, p.Next().Index)
	assert.Equal(t, 0, p.Prev().Index)

	_, err := p.JumpTo(1)
	require.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 0, p.State().Index)
}

func TestManualNavigationSequence(t *testing.T) {
	p, _ := newTestPlayer(t)
	var seen []int
	p.Subscribe(func(_ scenario.Step, index int) {
		seen = append(seen, index)
	})
	require.NoError(t, p.Load(makeScenario("five", 0, 0, 0, 0, 0)))
	p.Next()
	p.Next()
	p.Prev()

	assert.Equal(t, []int{0, 1, 2, 1}, seen)
	assert.Equal(t, StatusManualReady, p.State().Status)
}

func TestLoadEmptyScenarioKeepsIdle(t *testing.T) {
	p, _ := newTestPlayer(t)
	err := p.Load(scenario.Scenario{ID: "empty"})
	require.ErrorIs(t, err, ErrInvalidScenario)
	assert.Equal(t, StatusIdle, p.State().Status)
	_, ok := p.CurrentStep()
	assert.False(t, ok)
}

func TestObserversNotifiedInRegistrationOrder(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("order", 0, 0, 0)))

	type call struct {
		who   string
		id    string
		index int
	}
	var calls []call
	p.Subscribe(func(step scenario.Step, index int) {
		calls = append(calls, call{"first", step.ID, index})
	})
	p.Subscribe(func(step scenario.Step, index int) {
		calls = append(calls, call{"second", step.ID, index})
	})
	p.Next()

	require.Len(t, calls, 2)
	assert.Equal(t, call{"first", "order-2", 1}, calls[0])
	assert.Equal(t, call{"second", "order-2", 1}, calls[1])
}

func TestBoundsHoldForAnyNavigation(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("bounds", 0, 0, 0, 0)))
	moves := "nnnnnnpppppppnpnnnnnnnppnpnpnnnnpppppppp"
	for _, m := range moves {
		if m == 'n' {
			p.Next()
		} else {
			p.Prev()
		}
		idx := p.State().Index
		require.GreaterOrEqual(t, idx, 0)
		require.LessOrEqual(t, idx, 3)
	}
}

func TestBoundaryMovesDoNotNotify(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("edge", 0, 0)))
	count := 0
	p.Subscribe(func(scenario.Step, int) { count++ })

	p.Prev()
	assert.Equal(t, 0, count)
	p.Next()
	assert.Equal(t, 1, count)
	p.Next()
	assert.Equal(t, 1, count, "next at the last step is a silent no-op")
}

func TestLoadResetsToFirstStep(t *testing.T) {
	p, _ := newTestPlayer(t)
	first := makeScenario("first", 0, 0, 0)
	require.NoError(t, p.Load(first))
	p.Next()
	p.Next()
	p.SetMode(ModeTimed)
	p.Play()

	second := makeScenario("second", 0, 0)
	require.NoError(t, p.Load(second))
	step, ok := p.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, second.Steps[0], step)
	assert.Equal(t, StatusManualReady, p.State().Status)
	assert.Equal(t, []int{0}, p.Visited())
}

func TestJumpToValidation(t *testing.T) {
	p, _ := newTestPlayer(t)
	sc := makeScenario("jump", 0, 0, 0, 0)
	require.NoError(t, p.Load(sc))
	p.Next()

	for _, bad := range []int{-1, len(sc.Steps)} {
		_, err := p.JumpTo(bad)
		require.ErrorIs(t, err, ErrOutOfRange)
		assert.Equal(t, 1, p.State().Index)
	}
	for k := range sc.Steps {
		pos, err := p.JumpTo(k)
		require.NoError(t, err)
		assert.Equal(t, k, pos.Index)
		step, _ := p.CurrentStep()
		assert.Equal(t, sc.Steps[k].ID, step.ID)
	}
}

type recordingSink struct {
	log *[]string
}

func (s recordingSink) Apply(e scenario.Effect) {
	*s.log = append(*s.log, "effect:"+e.Kind)
}

func TestEffectAppliedBeforeObservers(t *testing.T) {
	var log []string
	p, _ := newTestPlayer(t, WithEffectSink(recordingSink{log: &log}))
	sc := makeScenario("fx", 0, 0)
	sc.Steps[1].Effect = &scenario.Effect{Kind: "open-panel"}
	require.NoError(t, p.Load(sc))
	p.Subscribe(func(step scenario.Step, _ int) {
		log = append(log, "render:"+step.ID)
	})
	p.Next()

	assert.Equal(t, []string{"effect:open-panel", "render:fx-2"}, log)
}

func TestManualNavigationReschedulesTimer(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("resched", 1000, 5000, 1000)))
	p.SetMode(ModeTimed)
	p.Play()

	clock.Advance(900 * time.Millisecond)
	p.Next()
	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, p.State().Index, "the old 1000ms timer must not fire after manual navigation")

	clock.Advance(4800 * time.Millisecond)
	assert.Equal(t, 2, p.State().Index)
	assert.Equal(t, 1, clock.Pending())
}

func TestPauseCancelsPendingAdvance(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("pause", 1000, 1000)))
	p.SetMode(ModeTimed)
	p.Play()
	clock.Advance(500 * time.Millisecond)
	p.Pause()

	state := p.State()
	assert.Equal(t, StatusTimedPaused, state.Status)
	assert.InDelta(t, 0.5, state.Progress, 0.001)

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, p.State().Index)
	assert.Equal(t, 0, clock.Pending())
}

func TestFallbackDurationForUnsetSteps(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("fallback", 0, 0)))
	p.SetMode(ModeTimed)
	p.Play()
	clock.Advance(DefaultStepDuration - time.Millisecond)
	assert.Equal(t, 0, p.State().Index)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, p.State().Index)
}

func TestPlayIgnoredInManualMode(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("manual", 1000, 1000)))
	p.Play()
	assert.False(t, p.State().Playing)
	assert.Equal(t, 0, clock.Pending())
}

func TestSetModeManualCancelsTimer(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("switch", 1000, 1000)))
	p.SetMode(ModeTimed)
	p.Play()
	p.SetMode(ModeManual)

	assert.Equal(t, StatusManualReady, p.State().Status)
	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, p.State().Index)
}

func TestRestartClearsVisitedAndNotifies(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("restart", 0, 0, 0)))
	p.Next()
	p.Next()
	assert.Equal(t, []int{0, 1, 2}, p.Visited())

	notified := 0
	p.Subscribe(func(_ scenario.Step, index int) {
		notified++
		assert.Equal(t, 0, index)
	})
	pos := p.Restart()
	assert.Equal(t, 0, pos.Index)
	assert.Equal(t, []int{0}, p.Visited())
	assert.Equal(t, 1, notified)
}

func TestSkipToEndStopsPlayback(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("skip", 1000, 1000, 1000)))
	p.SetMode(ModeTimed)
	p.Play()
	pos := p.SkipToEnd()

	assert.Equal(t, 2, pos.Index)
	assert.False(t, p.State().Playing)
	assert.Equal(t, 0, clock.Pending())
}

func TestSignalAdvancesOnlyCurrentStep(t *testing.T) {
	p, clock := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("sig", 10000, 10000, 10000)))

	assert.False(t, p.Signal("sig-1"), "manual mode ignores completion signals")

	p.SetMode(ModeTimed)
	p.Play()
	assert.False(t, p.Signal("sig-2"), "stale step id")
	assert.Equal(t, 0, p.State().Index)

	assert.True(t, p.Signal("sig-1"))
	assert.Equal(t, 1, p.State().Index)
	assert.Equal(t, 1, clock.Pending())

	p.JumpTo(2)
	assert.True(t, p.Signal("sig-3"))
	assert.False(t, p.State().Playing)
	assert.Equal(t, 2, p.State().Index)
}

func TestReentrantObserverDoesNotDeadlock(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("reenter", 0, 0, 0)))
	var seen []int
	p.Subscribe(func(_ scenario.Step, index int) {
		seen = append(seen, index)
		if index == 1 {
			p.Next()
		}
	})
	p.Next()

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, p.State().Index)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.Load(makeScenario("unsub", 0, 0, 0)))
	count := 0
	sub := p.Subscribe(func(scenario.Step, int) { count++ })
	p.Next()
	sub.Close()
	sub.Close()
	p.Next()
	assert.Equal(t, 1, count)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode(" Timed ")
	require.NoError(t, err)
	assert.Equal(t, ModeTimed, mode)
	_, err = ParseMode("looping")
	assert.Error(t, err)
}
