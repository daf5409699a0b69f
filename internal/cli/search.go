package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/skiffworks/skiff/internal/marketplace"
)

func newSearchCommand(a *app) *cobra.Command {
	var pluginType string
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the plugin registry",
		Long: `Search the plugin registry. Results are ranked by how well their
names match the query.

Examples:
  skiff search git
  skiff search --type theme
  skiff search lint --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return runSearch(a, cmd, query, pluginType, limit)
		},
	}

	cmd.Flags().StringVar(&pluginType, "type", "", "filter by plugin type (tool, theme, extension, utility, mcp-server)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results")

	return cmd
}

func runSearch(a *app, cmd *cobra.Command, query, pluginType string, limit int) error {
	results, err := a.market().Search(cmd.Context(), marketplace.SearchOptions{
		Query: query,
		Type:  pluginType,
		Limit: limit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No plugins found.")
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Name, r.Version, r.Type, strconv.Itoa(r.Downloads), r.Description,
		})
	}
	writeTable(out, []string{"NAME", "VERSION", "TYPE", "DOWNLOADS", "DESCRIPTION"}, rows, nil)

	fmt.Fprintf(out, "\n%s\n", dimStyle.Render("Install with: skiff plugin install <name>"))
	return nil
}
