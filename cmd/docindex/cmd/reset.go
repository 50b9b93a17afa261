package cmd

import (
	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
)

func newResetCmd(root *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all stored vectors and records",
		Long: `Remove index.bin and metadata.json. This also releases the embedding mode
lock, so the next index run may use a different mode or dimension.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return docerrors.ValidationError("reset needs confirmation", nil).
					WithSuggestion("Re-run with --yes")
			}
			engine, cfg, err := root.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			if err := engine.Reset(cmd.Context()); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Store at %s cleared", cfg.Storage.Dir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
