package commands

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check scenario files for structural errors",
		Long: `validate parses each YAML, JSON or Go script scenario file, checks that
every scenario has an id and unique step ids, and reports duplicate scenario ids
across the given files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(cmd, args)
		},
	}
}

func validateFiles(cmd *cobra.Command, paths []string) error {
	out := newPrinter(cmd)
	catalog := scenario.NewCatalog()
	failures := map[string]string{}
	for _, path := range paths {
		files, err := loadScenarioFile(path)
		if err == nil {
			err = catalog.AddFiles(files)
		}
		if err != nil {
			failures[path] = err.Error()
			continue
		}
		scenarios, steps := 0, 0
		for _, file := range files {
			for _, sc := range file.Category.Scenarios {
				scenarios++
				steps += sc.Len()
			}
		}
		out.Success("%s: %d scenario(s), %d step(s)", path, scenarios, steps)
	}
	if len(failures) > 0 {
		return out.ErrorWithContext("Validation failed",
			"These files could not be loaded:", failures, nil)
	}
	return nil
}

func loadScenarioFile(path string) ([]scenario.SourceFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".go") {
		return scenario.LoadScriptFile(path)
	}
	file, err := scenario.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []scenario.SourceFile{file}, nil
}
