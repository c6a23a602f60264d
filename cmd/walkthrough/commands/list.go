package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/walkthrough/internal/scenario"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available scenarios grouped by epic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, opts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			if query := strings.TrimSpace(filter); query != "" {
				return listMatches(e, query)
			}
			return listCategories(e)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "fuzzy filter on id, name and story")
	return cmd
}

func listCategories(e *env) error {
	cats := e.catalog.Categories()
	if len(cats) == 0 {
		e.out.Warning("no scenarios found")
		return nil
	}
	for i, cat := range cats {
		if i > 0 {
			e.out.Info("")
		}
		e.out.Info("%s (%s)", cat.Name, cat.ID)
		for _, sc := range cat.Scenarios {
			e.out.Info("  %s", describe(e, sc))
		}
	}
	return nil
}

func listMatches(e *env, query string) error {
	hits := e.catalog.Search(query)
	if len(hits) == 0 {
		e.out.Warning("no scenario matches %q", query)
		return nil
	}
	for _, sc := range hits {
		e.out.Info("%s", describe(e, sc))
	}
	return nil
}

func describe(e *env, sc scenario.Scenario) string {
	line := sc.ID + "  " + sc.Title()
	if sc.Title() == sc.ID {
		line = sc.ID
	}
	steps := fmt.Sprintf("%d steps", sc.Len())
	if sc.Len() == 1 {
		steps = "1 step"
	}
	return fmt.Sprintf("%s  · %s  · %s", line, steps, e.catalog.Source(sc.ID))
}
