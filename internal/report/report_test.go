package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

func TestCohorts(t *testing.T) {
	var buf bytes.Buffer
	Cohorts(&buf, []record.CohortRow{
		{Cohort: "2024-01", TotalPrincipal: 1234.5, CreditCount: 7},
		{Cohort: "unknown", TotalPrincipal: 10, CreditCount: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "Cohort report")
	assert.Contains(t, out, "total_principal")
	assert.Contains(t, out, "2024-01")
	assert.Contains(t, out, "1234.50")
	assert.Contains(t, out, "unknown")
}

func TestStatuses_NullMean(t *testing.T) {
	var buf bytes.Buffer
	Statuses(&buf, []record.StatusRow{
		{MacroRegion: "North", LoanStatus: "current", OutstandingBalance: 230, MeanDaysPastDue: record.Float(5)},
		{MacroRegion: "North", LoanStatus: "late", OutstandingBalance: 50},
	})
	out := buf.String()
	assert.Contains(t, out, "mean_days_past_due")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, nullValue)
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, &columnar.Summary{
		Path:   "clean_events.parquet",
		Fields: []columnar.Field{{Name: "loan_id", Type: "utf8", Nullable: true}, {Name: "ingestion_timestamp", Type: "timestamp[us, tz=UTC]"}},
		Rows:   1,
		Sample: [][]interface{}{{nil, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}},
	})
	out := buf.String()
	assert.Contains(t, out, "clean_events.parquet: 1 rows, 2 columns")
	assert.Contains(t, out, "ingestion_timestamp")
	assert.Contains(t, out, "2024-01-02T03:04:05Z")
	assert.Contains(t, out, nullValue)
}

func TestResults(t *testing.T) {
	var buf bytes.Buffer
	Results(&buf, []*stage.Result{
		{Stage: "clean", Status: stage.StatusSucceeded, DurationMs: 12, Counters: map[string]int64{"quarantined": 1, "clean": 2}},
		{Stage: "aggregate", Status: stage.StatusFailed, Error: "clean dataset not found"},
	})
	out := buf.String()
	assert.Contains(t, out, "clean=2 quarantined=1")
	assert.Contains(t, out, "clean dataset not found")
}
