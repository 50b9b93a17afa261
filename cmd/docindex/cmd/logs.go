package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/output"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		follow  bool
		level   string
		filter  string
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show docindex log entries",
		Long: `Show recent entries from the docindex log file (~/.docindex/logs/docindex.log).

Examples:
  docindex logs                   # last 50 lines
  docindex logs -f                # follow new entries
  docindex logs --level warn      # warnings and errors only
  docindex logs --filter query    # entries matching a regex`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = logging.DefaultLogPath()
			}
			if !exists(path) {
				return docerrors.New(docerrors.ErrCodeFileNotFound, "log file not found: "+path, nil).
					WithSuggestion("Run any docindex command or 'docindex serve' to create it")
			}

			cfg := logging.ViewerConfig{
				Level: level,
				Color: !noColor && output.IsTTY(cmd.OutOrStdout()) && !output.NoColorEnv(),
			}
			if filter != "" {
				re, err := regexp.Compile(filter)
				if err != nil {
					return docerrors.ValidationError("invalid --filter pattern", err)
				}
				cfg.Pattern = re
			}
			viewer := logging.NewViewer(cfg)

			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return docerrors.IOError("failed to read log file", err)
			}
			viewer.Print(cmd.OutOrStdout(), entries)
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch := make(chan logging.LogEntry, 100)
			errCh := make(chan error, 1)
			go func() {
				errCh <- viewer.Follow(ctx, path, ch)
				close(ch)
			}()
			for e := range ch {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), viewer.Format(e))
			}
			return <-errCh
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow new entries")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show entries matching this regex")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default ~/.docindex/logs/docindex.log)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return cmd
}
