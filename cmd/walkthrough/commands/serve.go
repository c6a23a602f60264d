package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/eventbridge"
	"github.com/kingrea/walkthrough/internal/player"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
		mode string
	)
	cmd := &cobra.Command{
		Use:   "serve [scenario-id]",
		Short: "Run the local event bridge, optionally hosting one scenario",
		Long: `serve starts the HTTP event bridge (GET /health, GET /sessions,
POST /events) even when it is disabled in config.yaml. With a scenario id it
also opens a headless session that remote navigate, set_mode and
narration_finished events drive; transitions are printed as they happen.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return serve(cmd, opts, id, host, port, mode)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "", "starting playback mode for the hosted scenario")
	return cmd
}

func serve(cmd *cobra.Command, opts *rootOptions, id, host string, port int, modeFlag string) error {
	e, err := loadEnv(cmd, opts, true)
	if err != nil {
		return err
	}
	defer e.Close()

	settings := eventbridge.SettingsFromConfig(e.cfg)
	settings.Enabled = true
	if host != "" {
		settings.Host = host
	}
	if port > 0 && port <= 65535 {
		settings.Port = port
	}

	var sc scenario.Scenario
	var sessionOpts []session.Option
	if id != "" {
		if sc, err = e.catalog.Scenario(id); err != nil {
			return e.scenarioNotFound(id)
		}
		if modeFlag != "" {
			mode, err := player.ParseMode(modeFlag)
			if err != nil {
				return e.out.Error("Invalid mode", err.Error(), []string{"Use --mode manual or --mode timed"})
			}
			sessionOpts = append(sessionOpts, session.WithMode(mode))
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	router, server, shutdown, err := startBridge(ctx, e, settings)
	if err != nil {
		return e.out.ErrorWithContext("Event bridge failed to start", err.Error(),
			map[string]string{"Address": settings.Address()},
			[]string{"Pick another port with --port or WALKTHROUGH_BRIDGE_PORT"})
	}
	defer shutdown()
	e.out.Success("event bridge listening on %s", server.BaseURL())

	if id != "" {
		sessionOpts = append([]session.Option{
			session.WithRouter(router),
			session.WithLogger(e.diag()),
			session.WithJournal(e.journal),
		}, sessionOpts...)
		s, err := session.New(e.cfg, sc, sessionOpts...)
		if err != nil {
			return e.out.Error("Could not start scenario", err.Error(), nil)
		}
		defer s.Close()
		total := sc.Len()
		if step, ok := s.Player.CurrentStep(); ok {
			printStep(e.out, step, 0, total)
		}
		s.Subscribe(func(step scenario.Step, index int) {
			printStep(e.out, step, index, total)
		})
		e.out.Info("session %s · %s", s.ID, sc.Title())
	}
	<-ctx.Done()
	e.out.Info("shutting down")
	return nil
}
