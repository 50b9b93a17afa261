package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/embed"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/output"
	"github.com/Aman-CERP/docindex/internal/retrieval"
)

type indexOptions struct {
	prefer      string
	stdinSource string
	jsonOutput  bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Extract, chunk, embed and store documents",
		Long: `Index local documents (txt, md, csv, tsv, xlsx, pdf).

Chunks already in the store are skipped, so re-running is safe. A source
that cannot be read is reported and skipped; the rest of the batch is kept.

The first vector stored locks the store to its embedding mode. Mixing
provider and deterministic vectors is refused; reset the store to switch.`,
		Example: `  docindex index notes.md report.pdf
  docindex index --prefer deterministic *.txt
  cat memo.txt | docindex index --stdin memo.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.stdinSource == "" {
				return docerrors.ValidationError("no files given", nil).
					WithSuggestion("Pass one or more file paths, or --stdin <name>")
			}
			return runIndex(cmd, root, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.prefer, "prefer", "", "Embedding path: provider or deterministic (default: config, then automatic)")
	cmd.Flags().StringVar(&opts.stdinSource, "stdin", "", "Also index text read from stdin under this source name")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, paths []string, opts indexOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cfg, err := root.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	preferValue := opts.prefer
	if preferValue == "" {
		preferValue = cfg.Embeddings.Prefer
	}
	pref, ok := embed.ParsePreference(preferValue)
	if !ok {
		return docerrors.ValidationError(fmt.Sprintf("invalid --prefer value %q", preferValue), nil).
			WithSuggestion("Use provider or deterministic")
	}
	indexOpts := retrieval.IndexOptions{Preference: pref}

	var total retrieval.IndexResult
	if len(paths) > 0 {
		total, err = engine.Index(ctx, paths, indexOpts)
		if err != nil {
			return err
		}
	}
	if opts.stdinSource != "" {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return docerrors.IOError("failed to read stdin", err)
		}
		res, err := engine.IndexDocuments(ctx, []retrieval.Document{{Source: opts.stdinSource, Text: string(text)}}, indexOpts)
		if err != nil {
			return err
		}
		total.Indexed += res.Indexed
		total.Skipped += res.Skipped
		total.Mode = res.Mode
		total.Failures = append(total.Failures, res.Failures...)
	}

	root.log().Info("cli_index_completed",
		slog.Int("indexed", total.Indexed),
		slog.Int("skipped", total.Skipped))

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(total)
	}
	output.New(cmd.OutOrStdout()).IndexResult(total)
	return nil
}
