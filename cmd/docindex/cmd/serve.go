package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/logging"
	"github.com/Aman-CERP/docindex/internal/mcp"
	"github.com/Aman-CERP/docindex/internal/retrieval"
	"github.com/Aman-CERP/docindex/internal/watcher"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		transport string
		noWatch   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Start a Model Context Protocol server exposing the index_documents, query,
flush, invalidate_cache and index_status tools.

stdout carries JSON-RPC only; logs go to ~/.docindex/logs/docindex.log.
Pending changes are flushed on shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, transport, !noWatch)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the store directory for external changes")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, transport string, watch bool) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	// Nothing may be written to stdout before the server owns it.
	logCfg := logging.ServeConfig(cfg.Server.LogLevel)
	if root.debug {
		logCfg.Level = "debug"
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		logger = logging.Discard()
	} else {
		defer cleanup()
	}
	root.logger = logger

	engine, err := retrieval.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("serve_engine_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := engine.Flush(context.WithoutCancel(ctx)); err != nil {
			logger.Error("serve_final_flush_failed", slog.String("error", err.Error()))
		}
		_ = engine.Close()
	}()

	srv, err := mcp.NewServer(engine, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if watch && cfg.Server.WatchRestore {
		w, err := newRestoreWatcher(cfg, engine, logger)
		if err != nil {
			logger.Warn("watch_disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	g.Go(func() error {
		err := srv.Serve(gctx, transport)
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		// The client closed stdin; stop the watcher too.
		return context.Canceled
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRestoreWatcher(cfg *config.Config, engine *retrieval.Engine, logger *slog.Logger) (*watcher.RestoreWatcher, error) {
	opts := watcher.Options{
		Debounce: config.Duration(cfg.Server.WatchDebounce, watcher.DefaultOptions().Debounce),
	}
	return watcher.NewRestoreWatcher(cfg.Storage.Dir, engine, opts, logger)
}
