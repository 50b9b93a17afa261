package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/retrieval"
)

type statsReport struct {
	retrieval.Stats
	Sources []retrieval.SourceInfo `json:"sources"`
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and embedding status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := root.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			st := engine.Stats(cmd.Context())
			// A load failure is already in st.Store.LastLoadError.
			sources, _ := engine.Sources(cmd.Context())
			if sources == nil {
				sources = []retrieval.SourceInfo{}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statsReport{Stats: st, Sources: sources})
			}
			output.New(cmd.OutOrStdout()).Stats(st, sources)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
