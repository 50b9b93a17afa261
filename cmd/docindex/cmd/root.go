// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docindex/internal/config"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/profiling"
	"github.com/Aman-CERP/docindex/internal/retrieval"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// rootOptions holds persistent flags and per-run state shared by subcommands.
type rootOptions struct {
	workDir  string
	storeDir string
	debug    bool
	noLog    bool
	profile  profiling.Options

	logger         *slog.Logger
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the docindex CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Local document index with embedding search",
		Long: `docindex extracts text from local documents, splits it into overlapping
chunks, embeds each chunk and stores the vectors in a flat on-disk index.

Embeddings come from a configured provider (OpenAI-compatible endpoint,
OpenRouter or Ollama). Without one, a deterministic hash embedding is used
so indexing and keyword-style search still work offline.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("docindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.workDir, "dir", "C", ".", "Directory to load .docindex.yaml and .env from")
	cmd.PersistentFlags().StringVar(&opts.storeDir, "store", "", "Store directory (overrides storage.dir)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.docindex/logs/ and stderr")
	cmd.PersistentFlags().BoolVar(&opts.noLog, "no-log", false, "Disable file logging")
	_ = cmd.PersistentFlags().MarkHidden("no-log")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write a heap profile to this file on exit")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write an execution trace to this file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := opts.startLogging(cmd); err != nil {
			return err
		}
		return opts.startProfiling()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		return opts.finish()
	}

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newFlushCmd(opts))
	cmd.AddCommand(newSnapshotCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd, opts
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	cmd, opts := newRootCmd()
	err := cmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	if ferr := opts.finish(); err == nil {
		err = ferr
	}
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprint(w, docerrors.FormatForCLI(err))
}

// startLogging configures slog for the run. The serve command replaces this
// with its own file-only setup; logs only reads the file.
func (o *rootOptions) startLogging(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "serve":
		return nil
	case "logs":
		o.logger = logging.Discard()
		return nil
	}
	switch {
	case o.debug:
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		o.logger, o.loggingCleanup = logger, cleanup
		logger.Info("debug_logging_enabled", slog.String("log_file", logging.DefaultLogPath()))
	case o.noLog:
		o.logger = logging.Discard()
	default:
		logger, cleanup, err := logging.Setup(logging.DefaultConfig())
		if err != nil {
			// File logging is best effort for CLI commands.
			o.logger = logging.Discard()
			return nil
		}
		o.logger, o.loggingCleanup = logger, cleanup
	}
	return nil
}

func (o *rootOptions) startProfiling() error {
	if !o.profile.Enabled() {
		return nil
	}
	p, err := profiling.Start(o.profile)
	if err != nil {
		return docerrors.IOError("failed to start profiling", err)
	}
	o.profiler = p
	return nil
}

// finish stops profiling and closes the log file. Safe to call twice.
func (o *rootOptions) finish() error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
		if err != nil {
			err = docerrors.IOError("failed to write profile", err)
		} else {
			o.log().Info("profile_written",
				slog.String("cpu", o.profile.CPU),
				slog.String("heap", o.profile.Heap),
				slog.String("trace", o.profile.Trace))
		}
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
	return err
}

func (o *rootOptions) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// loadConfig resolves the effective configuration, applying --store.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.workDir)
	if err != nil {
		return nil, docerrors.ConfigError(err.Error(), err)
	}
	if o.storeDir != "" {
		cfg.Storage.Dir = o.storeDir
	}
	return cfg, nil
}

// openEngine builds an engine from the effective configuration.
func (o *rootOptions) openEngine(ctx context.Context) (*retrieval.Engine, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := retrieval.NewFromConfig(ctx, cfg, o.log())
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
