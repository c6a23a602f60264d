package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/eventbridge"
	"github.com/kingrea/walkthrough/internal/tui"
)

func newPlayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play [scenario-id]",
		Short: "Open the interactive player (default command)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runPlay(cmd, opts, id)
		},
	}
}

func runPlay(cmd *cobra.Command, opts *rootOptions, id string) error {
	e, err := loadEnv(cmd, opts, true)
	if err != nil {
		return err
	}
	defer e.Close()
	if id != "" {
		if _, err := e.catalog.Scenario(id); err != nil {
			return e.scenarioNotFound(id)
		}
	}

	appOpts := []tui.AppOption{
		tui.WithCatalog(e.catalog),
		tui.WithStartScenario(id),
		tui.WithLogger(e.diag()),
	}
	settings := eventbridge.SettingsFromConfig(e.cfg)
	if settings.Enabled {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		router, _, shutdown, err := startBridge(ctx, e, settings)
		if err != nil {
			e.out.Warning("event bridge disabled: %v", err)
		} else {
			defer shutdown()
			appOpts = append(appOpts, tui.WithRouter(router))
		}
	}

	app, err := tui.NewApp(e.projectDir, appOpts...)
	if err != nil {
		return e.out.Error("Could not start the player", err.Error(), nil)
	}
	defer app.Close()

	// tea.WithAltScreen keeps the shell scrollback intact.
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	if _, err := p.Run(); err != nil {
		return e.out.Error("Player exited with an error", err.Error(), nil)
	}
	return nil
}
