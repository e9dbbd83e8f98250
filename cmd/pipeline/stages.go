package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Cuervinho/Data-engineering-challenge/internal/aggregate"
	"github.com/Cuervinho/Data-engineering-challenge/internal/clean"
	"github.com/Cuervinho/Data-engineering-challenge/internal/clock"
	"github.com/Cuervinho/Data-engineering-challenge/internal/config"
	"github.com/Cuervinho/Data-engineering-challenge/internal/ingest"
	"github.com/Cuervinho/Data-engineering-challenge/internal/pipeline"
	"github.com/Cuervinho/Data-engineering-challenge/internal/report"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

var (
	batchSize int
	sleep     time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Land the source table in bronze as micro-batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *loader.Config()
		if cmd.Flags().Changed("batch-size") {
			if batchSize <= 0 {
				return fmt.Errorf("--batch-size must be positive, got %d", batchSize)
			}
			cfg.Ingest.BatchSize = batchSize
		}
		if cmd.Flags().Changed("sleep") {
			cfg.Ingest.SleepMs = int(sleep.Milliseconds())
			if sleep <= 0 {
				cfg.Ingest.SleepMs = -1
			}
		}
		return runStages(cmd, &cfg, ingest.StageName)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Validate and deduplicate bronze into the silver dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, loader.Config(), clean.StageName)
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Build the gold cohort report and status view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, loader.Config(), aggregate.StageName)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run ingest, clean and aggregate in order, stopping at the first failure",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, loader.Config(), pipeline.Order...)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per micro-batch (overrides ingest.batch_size)")
	ingestCmd.Flags().DurationVar(&sleep, "sleep", 0, "pause between batches; 0 disables it (overrides ingest.sleep_ms)")
	rootCmd.AddCommand(ingestCmd, cleanCmd, aggregateCmd, runCmd)
}

// runStages runs names in order against cfg, prints a summary and pushes
// metrics. The first stage error is returned.
func runStages(cmd *cobra.Command, cfg *config.PipelineConfig, names ...string) error {
	reg, err := pipeline.NewRegistry(cfg, clock.System{}, clock.System{}, logger)
	if err != nil {
		return err
	}
	runner := stage.NewRunner(reg, clock.System{}, logger)
	results, runErr := runner.Sequence(cmd.Context(), names...)

	out := cmd.OutOrStdout()
	for _, r := range results {
		if rep, ok := r.Detail.(*aggregate.Report); ok && r.Status == stage.StatusSucceeded {
			report.Statuses(out, rep.Statuses)
		}
	}
	report.Results(out, results)
	pushMetrics(cfg)
	return runErr
}
