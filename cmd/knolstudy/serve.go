package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/conorfennell/knolstudy/internal/study"
	"github.com/conorfennell/knolstudy/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the study API",
		Long: `Serve the JSON study API and Prometheus metrics.

Examples:
  # Serve on the configured address
  knolstudy serve

  # Sync every deck before serving
  knolstudy serve --addr 0.0.0.0:8080 --sync`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "localhost:8080", "address to listen on")
	cmd.Flags().Bool("sync", false, "sync every deck before serving")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer := a.syncer()
	if syncFirst, _ := cmd.Flags().GetBool("sync"); syncFirst {
		if _, err := syncer.RunAll(ctx); err != nil {
			a.logger.Warn("initial sync finished with errors", zap.Error(err))
		}
	}

	metrics := web.NewMetrics()
	srv := web.NewServer(a.service(study.WithObserver(metrics)), syncer, a.db, metrics, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(a.cfg.Server.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errCh
}
