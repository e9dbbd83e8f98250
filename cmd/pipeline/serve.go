package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cuervinho/Data-engineering-challenge/internal/api"
	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/config"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/pipeline"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

var addr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the stages over HTTP for an external scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loader.Config()
	if addr == "" {
		addr = cfg.Server.Addr
	}

	sys := clock.System{}
	reg, err := pipeline.NewRegistry(cfg, sys, sys, logger)
	if err != nil {
		return err
	}
	runner := stage.NewRunner(reg, sys, logger)

	// Hot reload: a valid new config swaps in freshly built stages. A run
	// already in progress keeps the stage it started with.
	loader.OnChange(func(newCfg *config.PipelineConfig) {
		if err := pipeline.Rebuild(reg, newCfg, sys, sys, logger); err != nil {
			logger.Warn("hot-reload skipped: stages could not be rebuilt", logging.Err(err))
			return
		}
		logger.Info("stages rebuilt from config", logging.Path(loader.Path()))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		logger.Warn("config watcher unavailable (hot-reload disabled)", logging.Err(err))
	} else {
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:        addr,
		Handler:     api.New(runner, loader, logger),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: a stage run holds the response until it ends.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return err
	}
	logger.Info("goodbye")
	return nil
}
