package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/output"
)

// newFlushCmd loads the store and writes it back if loading repaired it,
// e.g. after metadata was truncated to the index length.
func newFlushCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Write pending store changes to disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, _, err := root.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			report, err := engine.Store().Load(ctx)
			if err != nil {
				return err
			}
			if err := engine.Flush(ctx); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if report.Truncated > 0 {
				out.Warningf("Dropped %d metadata record(s) without vectors", report.Truncated)
			}
			out.Successf("Store flushed (%d records)", engine.Store().Len())
			return nil
		},
	}
}
