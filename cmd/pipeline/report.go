package main

import (
	"github.com/spf13/cobra"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/report"
)

var inspectLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the gold cohort report and status view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := loader.Config().Paths
		cohorts, err := columnar.ReadCohorts(cmd.Context(), p.CohortReport)
		if err != nil {
			return err
		}
		statuses, err := columnar.ReadStatuses(cmd.Context(), p.StatusView)
		if err != nil {
			return err
		}
		report.Cohorts(cmd.OutOrStdout(), cohorts)
		report.Statuses(cmd.OutOrStdout(), statuses)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.parquet>",
	Short: "Show the schema and first rows of a parquet file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := columnar.Inspect(cmd.Context(), args[0], inspectLimit)
		if err != nil {
			return err
		}
		report.Summary(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 10, "number of sample rows")
	rootCmd.AddCommand(reportCmd, inspectCmd)
}
