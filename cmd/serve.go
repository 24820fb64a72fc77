package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storyvault/internal/api"
	"storyvault/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the archival service",
		Long: `Starts the HTTP API, the task workers, and (when enabled in config) the
automatic archival scheduler. The process runs until SIGINT or SIGTERM.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer a.close()

	w := worker.New(worker.Config{Concurrency: a.cfg.Worker.Concurrency},
		a.queue, a.tasks, a.pipeline, a.logger)
	w.Start(ctx)

	if a.cfg.Scheduler.AutoStart {
		a.scheduler.StartAuto(ctx)
	}

	server := api.NewServer(a.stories, a.chapters, a.tasks, a.queue,
		a.resolver, a.scheduler, a.idGen, a.clock, a.logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	a.scheduler.StopAuto()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown failed", zap.Error(err))
	}

	w.Wait()
	a.scheduler.Wait()
	return nil
}
