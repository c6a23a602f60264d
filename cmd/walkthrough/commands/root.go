package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/config"
	"github.com/kingrea/walkthrough/internal/logbook"
	"github.com/kingrea/walkthrough/internal/logging"
	"github.com/kingrea/walkthrough/internal/printer"
	"github.com/kingrea/walkthrough/internal/scenario"
	"github.com/kingrea/walkthrough/internal/scenario/builtin"
	"github.com/kingrea/walkthrough/internal/session"
)

var versionString = "dev"

type rootOptions struct {
	projectDir string
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so tests
// can run commands side by side.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "walkthrough",
		Short: "Play scripted product walkthroughs in the terminal",
		Long: `walkthrough plays scripted scenarios step by step: manually with the
keyboard or timed with optional narration. Scenarios ship with the binary and
can be extended with YAML, JSON or Go script files under .walkthrough/scenarios.`,
		Version: versionString,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts, "")
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.projectDir, "project", "C", ".", "project directory holding .walkthrough/")
	root.AddCommand(
		newPlayCmd(opts),
		newListCmd(opts),
		newValidateCmd(),
		newRunCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// env is what every command needs once flags are parsed.
type env struct {
	projectDir string
	cfg        *config.Config
	catalog    *scenario.Catalog
	out        *printer.Printer
	logger     *logging.Logger
	journal    *logbook.Logbook
}

// loadEnv resolves the project, config and catalog. withLogs also prepares
// .walkthrough/ and opens the diagnostic log and journal.
func loadEnv(cmd *cobra.Command, opts *rootOptions, withLogs bool) (*env, error) {
	out := newPrinter(cmd)
	projectDir, err := filepath.Abs(strings.TrimSpace(opts.projectDir))
	if err != nil {
		return nil, out.Error("Invalid project directory", err.Error(), nil)
	}
	e := &env{projectDir: projectDir, out: out}
	if withLogs {
		if err := config.InitWalkthroughDir(projectDir); err != nil {
			return nil, out.ErrorWithContext("Could not prepare .walkthrough", err.Error(),
				map[string]string{"Project": projectDir}, nil)
		}
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, out.ErrorWithContext("Invalid configuration", err.Error(),
			map[string]string{"Config": filepath.Join(projectDir, config.WalkthroughDir, "config.yaml")},
			[]string{"Fix the file or delete it to regenerate the defaults"})
	}
	e.cfg = cfg
	catalog, err := scenario.BuildCatalog(builtin.Files, cfg.ScenarioDirs()...)
	if err != nil {
		return nil, out.Error("Could not load scenarios", err.Error(),
			[]string{"Run 'walkthrough validate <file>' on the file named above"})
	}
	e.catalog = catalog
	if withLogs {
		if logger, err := logging.New(projectDir); err == nil {
			e.logger = logger
		}
		if journal, err := logbook.New(cfg.JournalPath()); err == nil {
			e.journal = journal
		}
	}
	return e, nil
}

func newPrinter(cmd *cobra.Command) *printer.Printer {
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// diag returns the diagnostic logger, or nil when none is open.
func (e *env) diag() session.Logger {
	if e.logger == nil {
		return nil
	}
	return e.logger
}

func (e *env) Close() {
	if e == nil {
		return
	}
	if e.logger != nil {
		_ = e.logger.Close()
	}
}

func (e *env) scenarioNotFound(id string) error {
	suggestions := []string{"Run 'walkthrough list' to see available scenarios"}
	if hits := e.catalog.Search(id); len(hits) > 0 {
		suggestions = append([]string{fmt.Sprintf("Did you mean %s?", hits[0].ID)}, suggestions...)
	}
	return e.out.Error("Scenario not found", fmt.Sprintf("No scenario has id %q.", id), suggestions)
}
