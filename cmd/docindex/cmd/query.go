package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
)

func newQueryCmd(root *rootOptions) *cobra.Command {
	var (
		k          int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search indexed documents",
		Long: `Rank stored chunks by cosine similarity to the query, plus a small bonus
for each query word that appears in the chunk.

The query is embedded the same way the store was built. A store built from
provider vectors needs the provider to be reachable.`,
		Example: `  docindex query "invoice total"
  docindex query -k 10 --json "quarterly revenue"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			engine, _, err := root.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			results, err := engine.Query(cmd.Context(), query, k)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			output.New(cmd.OutOrStdout()).Results(query, results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Maximum number of results (default: retrieval.default_k)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
