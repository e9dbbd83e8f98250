package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cuervinho/Data-engineering-challenge/internal/config"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/metrics"
)

const defaultConfigPath = "configs/pipeline.yaml"

var (
	cfgFile string
	loader  *config.Loader
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Credit events medallion pipeline",
	Long: `pipeline moves credit loan events through the bronze, silver and gold
layers. Each stage runs on its own and communicates with the others only
through files on disk, so an external scheduler can trigger them in any
cadence.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "pipeline config file")
}

// setup loads the config and installs the logger. A missing default config
// file means built-in defaults; a missing explicit one is an error.
func setup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	l, err := config.NewLoader(path)
	if err != nil {
		return err
	}
	loader = l
	cfg := l.Config()
	logger = logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	if path == "" {
		logger.Debug("no config file found, using defaults", logging.Path(cfgFile))
	}
	return nil
}

// pushMetrics sends the run's metrics to the Pushgateway, if one is set.
// A failed push is logged and does not fail the command.
func pushMetrics(cfg *config.PipelineConfig) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", logging.Err(err))
	}
}
