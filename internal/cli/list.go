package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/replay/internal/config"
	"github.com/wesleyorama2/replay/internal/output"
	"github.com/wesleyorama2/replay/internal/stats"
	"github.com/wesleyorama2/replay/internal/testcase"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var scenariosOnly, noColor bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test cases of the catalog and the stats scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			console := output.NewConsole(output.ConsoleConfig{Writer: cmd.OutOrStdout(), NoColor: noColor})
			if !scenariosOnly {
				settings, err := g.settings(cmd, map[string]string{"catalog": config.KeyCatalog})
				if err != nil {
					return err
				}
				reg, err := testcase.LoadCatalog(settings.Catalog)
				if err != nil {
					return err
				}
				console.PrintTestCases(reg.List())
			}
			console.PrintScenarios(stats.Scenarios())
			return nil
		},
	}
	cmd.Flags().String("catalog", "", "Test case catalog file")
	cmd.Flags().BoolVar(&scenariosOnly, "scenarios", false, "Only list the stats scenarios")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
