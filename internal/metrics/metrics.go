package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	StageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_runs_total",
		Help: "Total number of stage runs, labelled by stage and outcome.",
	}, []string{"stage", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Wall-clock duration of a stage run in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	LastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_stage_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run of each stage.",
	}, []string{"stage"})

	RowsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_rows_ingested_total",
		Help: "Total number of source rows written to bronze.",
	})

	BatchesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_batches_written_total",
		Help: "Total number of bronze micro-batch files written.",
	})

	RecordsClean = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_records_clean_total",
		Help: "Total number of records written to the clean dataset.",
	})

	RecordsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_records_quarantined_total",
		Help: "Total number of records that failed validation.",
	})

	DuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_duplicates_dropped_total",
		Help: "Total number of valid records dropped as event id duplicates.",
	})

	RuleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_rule_failures_total",
		Help: "Total number of validity rule failures, labelled by rule.",
	}, []string{"rule"})

	AggregateRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_aggregate_rows",
		Help: "Rows in the latest gold outputs, labelled by output.",
	}, []string{"output"})
)

// Push sends the default registry to a Prometheus Pushgateway. Batch runs
// exit before a scrape could see them, so one-shot commands push instead.
func Push(url, job string) error {
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
