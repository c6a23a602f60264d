package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/printer"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/session"
)

const runPollInterval = 20 * time.Millisecond

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		mode     string
		fallback time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <scenario-id>",
		Short: "Play a scenario without the TUI, printing each step",
		Long: `run plays one scenario headless. In timed mode steps advance on their own
and the command exits after the last step. In manual mode each line on stdin is
a command: enter or n (next), p (previous), r (restart), e (end), q (quit).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts, args[0], mode, fallback)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(player.ModeTimed), "playback mode: manual or timed")
	cmd.Flags().DurationVar(&fallback, "fallback", 0, "duration for steps without duration_ms (default from config)")
	return cmd
}

func runScenario(cmd *cobra.Command, opts *rootOptions, id, modeFlag string, fallback time.Duration) error {
	e, err := loadEnv(cmd, opts, true)
	if err != nil {
		return err
	}
	defer e.Close()

	mode, err := player.ParseMode(modeFlag)
	if err != nil {
		return e.out.Error("Invalid mode", err.Error(), []string{"Use --mode manual or --mode timed"})
	}
	sc, err := e.catalog.Scenario(id)
	if err != nil {
		return e.scenarioNotFound(id)
	}
	if fallback > 0 {
		e.cfg.Project.Playback.FallbackMS = max(1, int(fallback.Milliseconds()))
	}
	// Playback starts only once the printer is subscribed.
	e.cfg.Project.Playback.Autoplay = false

	s, err := session.New(e.cfg, sc,
		session.WithMode(mode),
		session.WithLogger(e.diag()),
		session.WithJournal(e.journal))
	if err != nil {
		return e.out.Error("Could not start scenario", err.Error(), nil)
	}
	defer s.Close()

	total := sc.Len()
	e.out.Info("%s · %d step(s) · %s", sc.Title(), total, mode)
	if step, ok := s.Player.CurrentStep(); ok {
		printStep(e.out, step, 0, total)
	}
	positions := make(chan player.Position, 64)
	s.Subscribe(func(step scenario.Step, index int) {
		select {
		case positions <- player.Position{Index: index, Step: step}:
		default:
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if mode == player.ModeTimed {
		return playTimed(ctx, e.out, s, positions)
	}
	return playManual(ctx, cmd.InOrStdin(), e.out, s, positions)
}

func playTimed(ctx context.Context, out *printer.Printer, s *session.Session, positions <-chan player.Position) error {
	total := s.Scenario.Len()
	s.Player.Play()
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainPositions(out, positions, total)
			state := s.Player.State()
			out.Warning("interrupted at step %d/%d", state.Index+1, total)
			return nil
		case pos := <-positions:
			printStep(out, pos.Step, pos.Index, total)
		case <-ticker.C:
			if s.Player.State().Playing {
				continue
			}
			drainPositions(out, positions, total)
			out.Success("finished %s", s.Scenario.ID)
			return nil
		}
	}
}

func playManual(ctx context.Context, in io.Reader, out *printer.Printer, s *session.Session, positions <-chan player.Position) error {
	total := s.Scenario.Len()
	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	out.Info("enter/n next · p previous · r restart · e end · q quit")
	for {
		select {
		case <-ctx.Done():
			drainPositions(out, positions, total)
			return nil
		case line, ok := <-lines:
			if !ok {
				drainPositions(out, positions, total)
				state := s.Player.State()
				out.Warning("input closed at step %d/%d", state.Index+1, total)
				return nil
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "", "n", "next":
				if s.Player.State().AtEnd() {
					out.Success("finished %s", s.Scenario.ID)
					return nil
				}
				s.Player.Next()
			case "p", "prev":
				s.Player.Prev()
			case "r", "restart":
				s.Player.Restart()
			case "e", "end":
				s.Player.SkipToEnd()
			case "q", "quit":
				return nil
			default:
				out.Warning("unknown command %q", line)
			}
			drainPositions(out, positions, total)
		}
	}
}

func drainPositions(out *printer.Printer, positions <-chan player.Position, total int) {
	for {
		select {
		case pos := <-positions:
			printStep(out, pos.Step, pos.Index, total)
		default:
			return
		}
	}
}

func printStep(out *printer.Printer, step scenario.Step, index, total int) {
	out.Step("%s", session.StepLine(step, index, total))
	if narration := strings.TrimSpace(step.Narration); narration != "" {
		out.Detail("“%s”", narration)
	}
	if step.HasEffect() {
		out.Detail("effect %s", step.Effect.Kind)
	}
}
