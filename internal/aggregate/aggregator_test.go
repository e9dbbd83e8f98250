package aggregate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const regionsCSV = `region,macro_region
R1,North
R2,North
R3,South
R4,
`

type env struct {
	cfg Config
}

func newEnv(t *testing.T, rows []record.Ingested) env {
	dir := t.TempDir()
	cfg := Config{
		Silver:       filepath.Join(dir, "silver", "clean_events.parquet"),
		Regions:      filepath.Join(dir, "regions.csv"),
		CohortReport: filepath.Join(dir, "gold", "cohort_report.parquet"),
		StatusView:   filepath.Join(dir, "gold", "status_view.parquet"),
	}
	if rows != nil {
		require.NoError(t, columnar.WriteEvents(cfg.Silver, rows, columnar.Options{}))
	}
	require.NoError(t, os.WriteFile(cfg.Regions, []byte(regionsCSV), 0o644))
	return env{cfg: cfg}
}

func ev(loan, region, status, at string, principal, balance float64, dpd *int64) record.Ingested {
	r := record.Ingested{
		Event: record.Event{
			LoanID:             record.String(loan),
			CustomerID:         record.String("C-" + loan),
			EventID:            record.String("E-" + loan),
			PrincipalAmount:    record.Float(principal),
			OutstandingBalance: record.Float(balance),
			DaysPastDue:        dpd,
			LoanStatus:         record.String(status),
			Region:             record.String(region),
		},
		IngestionTimestamp: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		SourceFile:         "credit_events.csv",
	}
	if at != "" {
		r.EventTime = record.String(at)
	}
	return r
}

func TestRun_GoldTables(t *testing.T) {
	rows := []record.Ingested{
		ev("L1", "R1", "current", "2024-01-15 10:00:00", 100, 80, record.Int(0)),
		ev("L2", "R2", "current", "2024-01-31T23:59:59Z", 200, 150, record.Int(10)),
		ev("L3", "R3", "late", "2024-02-01", 300, 290, record.Int(45)),
		ev("L4", "R1", "late", "2024-02-10 08:00:00", 50, 50, nil),
		ev("L5", "R9", "current", "2024-02-11 08:00:00", 70, 70, record.Int(5)),
		ev("L6", "R4", "current", "", 10, 10, record.Int(1)),
	}
	e := newEnv(t, rows)

	rep, err := New(e.cfg, quiet).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Input)
	// R9 has no reference row and R4 has a null macro region.
	assert.Equal(t, 2, rep.Unmatched)

	wantCohorts := []record.CohortRow{
		{Cohort: "2024-01", TotalPrincipal: 300, CreditCount: 2},
		{Cohort: "2024-02", TotalPrincipal: 420, CreditCount: 3},
		{Cohort: UnknownCohort, TotalPrincipal: 10, CreditCount: 1},
	}
	assert.Equal(t, wantCohorts, rep.Cohorts)

	wantStatuses := []record.StatusRow{
		{MacroRegion: "North", LoanStatus: "current", OutstandingBalance: 230, MeanDaysPastDue: record.Float(5)},
		{MacroRegion: "North", LoanStatus: "late", OutstandingBalance: 50},
		{MacroRegion: "South", LoanStatus: "late", OutstandingBalance: 290, MeanDaysPastDue: record.Float(45)},
	}
	assert.Equal(t, wantStatuses, rep.Statuses)

	cohorts, err := columnar.ReadCohorts(context.Background(), e.cfg.CohortReport)
	require.NoError(t, err)
	assert.Equal(t, wantCohorts, cohorts)
	statuses, err := columnar.ReadStatuses(context.Background(), e.cfg.StatusView)
	require.NoError(t, err)
	assert.Equal(t, wantStatuses, statuses)
}

func TestRun_CohortTotalsMatchCleanRecords(t *testing.T) {
	var rows []record.Ingested
	want := map[string]float64{}
	for i := 0; i < 60; i++ {
		month := time.Month(1 + i%12)
		at := time.Date(2023, month, 1+i%28, 12, 0, 0, 0, time.UTC)
		p := float64(100 + i)
		rows = append(rows, ev("L", "R1", "current", at.Format("2006-01-02 15:04:05"), p, p, record.Int(0)))
		want[at.Format("2006-01")] += p
	}
	e := newEnv(t, rows)

	rep, err := New(e.cfg, quiet).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Cohorts, 12)
	for _, c := range rep.Cohorts {
		assert.InDelta(t, want[c.Cohort], c.TotalPrincipal, 1e-9, c.Cohort)
		assert.Equal(t, int64(5), c.CreditCount)
	}
}

func TestRun_ZeroRecordsStillWritesBothOutputs(t *testing.T) {
	e := newEnv(t, []record.Ingested{})

	rep, err := New(e.cfg, quiet).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Cohorts)
	assert.Empty(t, rep.Statuses)

	cohorts, err := columnar.ReadCohorts(context.Background(), e.cfg.CohortReport)
	require.NoError(t, err)
	assert.Empty(t, cohorts)
	statuses, err := columnar.ReadStatuses(context.Background(), e.cfg.StatusView)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestRun_MissingInputs(t *testing.T) {
	e := newEnv(t, nil)
	_, err := New(e.cfg, quiet).Run(context.Background())
	assert.ErrorIs(t, err, ErrCleanDataNotFound)

	e = newEnv(t, []record.Ingested{})
	require.NoError(t, os.Remove(e.cfg.Regions))
	_, err = New(e.cfg, quiet).Run(context.Background())
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	_, err = os.Stat(e.cfg.CohortReport)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_UnparseableEventTime(t *testing.T) {
	e := newEnv(t, []record.Ingested{ev("L1", "R1", "current", "last tuesday", 1, 1, nil)})
	_, err := New(e.cfg, quiet).Run(context.Background())
	assert.ErrorContains(t, err, "last tuesday")
}

func TestRegionIndex_Duplicate(t *testing.T) {
	_, err := RegionIndex([]record.Region{
		{Code: "R1", MacroRegion: record.String("North")},
		{Code: "R1", MacroRegion: record.String("South")},
	})
	assert.ErrorIs(t, err, ErrDuplicateRegion)
}

func TestCohort(t *testing.T) {
	tests := []struct {
		in   *string
		want string
	}{
		{nil, UnknownCohort},
		{record.String("2024-03-09"), "2024-03"},
		{record.String("2024-03-09 17:45:00"), "2024-03"},
		{record.String("2024-03-09 17:45:00.123456"), "2024-03"},
		{record.String("2024-03-09T17:45:00"), "2024-03"},
		{record.String("2024-12-31T23:30:00-05:00"), "2024-12"},
		{record.String("2024-03-09T17:45:00.5Z"), "2024-03"},
		{record.String("2024-03-05 10:00:00+00:00"), "2024-03"},
		{record.String("2024-03-31 23:30:00.250-03:00"), "2024-03"},
		{record.String("2024-03-05 10:00"), "2024-03"},
		{record.String("2024-03-05T10:00"), "2024-03"},
	}
	for _, tt := range tests {
		got, err := Cohort(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := Cohort(record.String("09/03/2024"))
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	e := newEnv(t, []record.Ingested{ev("L1", "R1", "current", "2024-01-01", 1, 1, record.Int(2))})
	s := NewStage(New(e.cfg, quiet))
	assert.Equal(t, StageName, s.Name())

	res, err := s.Run(context.Background(), "run-9")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Counters["cohorts"])
	assert.Equal(t, []string{e.cfg.CohortReport, e.cfg.StatusView}, res.Outputs)
	assert.Equal(t, "run-9", res.Detail.(*Report).RunID)
}
