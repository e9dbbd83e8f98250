// Package aggregate builds the gold tables from the clean dataset: a cohort
// report by origination month and a status view by macro region.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/logging"
	"github.com/Cuervinho/Data-engineering-challenge/internal/metrics"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/source"
)

var (
	ErrCleanDataNotFound = errors.New("clean dataset not found")
	ErrReferenceNotFound = errors.New("region reference table not found")
	ErrDuplicateRegion   = errors.New("duplicate region code in reference table")
)

// UnknownCohort is the cohort of records without an event time.
const UnknownCohort = "unknown"

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Config drives one aggregation run.
type Config struct {
	Silver       string
	Regions      string
	CohortReport string
	StatusView   string
	Storage      columnar.Options
}

// Report summarises an aggregation run.
type Report struct {
	RunID     string             `json:"run_id,omitempty"`
	Input     int                `json:"input"`
	Unmatched int                `json:"unmatched"`
	Cohorts   []record.CohortRow `json:"cohorts"`
	Statuses  []record.StatusRow `json:"statuses"`
}

// Aggregator computes the gold tables.
type Aggregator struct {
	cfg Config
	log *slog.Logger
}

// New creates an Aggregator.
func New(cfg Config, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{cfg: cfg, log: log}
}

// Run reads the clean dataset and the region reference, then rewrites both
// gold outputs. Both are written even when there are no clean records.
func (a *Aggregator) Run(ctx context.Context) (*Report, error) {
	if _, err := os.Stat(a.cfg.Silver); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCleanDataNotFound, a.cfg.Silver)
	}
	rows, err := columnar.ReadEvents(ctx, a.cfg.Silver)
	if err != nil {
		return nil, err
	}

	regions, err := source.ReadRegions(a.cfg.Regions)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, a.cfg.Regions)
		}
		return nil, fmt.Errorf("read regions: %w", err)
	}
	lookup, err := RegionIndex(regions)
	if err != nil {
		return nil, err
	}

	joined, unmatched := Join(rows, lookup)
	cohorts, err := Cohorts(joined)
	if err != nil {
		return nil, err
	}
	statuses := Statuses(joined)

	rep := &Report{Input: len(rows), Unmatched: unmatched, Cohorts: cohorts, Statuses: statuses}
	if unmatched > 0 {
		a.log.Warn("records without a macro region", slog.Int("count", unmatched))
	}

	if err := columnar.WriteCohorts(a.cfg.CohortReport, cohorts, a.cfg.Storage); err != nil {
		return rep, fmt.Errorf("write cohort report: %w", err)
	}
	if err := columnar.WriteStatuses(a.cfg.StatusView, statuses, a.cfg.Storage); err != nil {
		return rep, fmt.Errorf("write status view: %w", err)
	}
	metrics.AggregateRows.WithLabelValues("cohort_report").Set(float64(len(cohorts)))
	metrics.AggregateRows.WithLabelValues("status_view").Set(float64(len(statuses)))

	a.log.Info("aggregation finished",
		logging.Rows(len(rows)),
		slog.Int("cohorts", len(cohorts)),
		slog.Int("statuses", len(statuses)),
	)
	return rep, nil
}

// RegionIndex maps region codes to macro regions. A code listed twice is an
// error, since joining on it would count a record twice.
func RegionIndex(regions []record.Region) (map[string]*string, error) {
	idx := make(map[string]*string, len(regions))
	for _, r := range regions {
		if _, ok := idx[r.Code]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRegion, r.Code)
		}
		idx[r.Code] = r.MacroRegion
	}
	return idx, nil
}

// Enriched is a clean record with its macro region attached.
type Enriched struct {
	record.Ingested
	MacroRegion *string
}

// Join attaches a macro region to every row, keeping rows without a match.
// It returns the joined rows and how many of them got no macro region.
func Join(rows []record.Ingested, regions map[string]*string) ([]Enriched, int) {
	out := make([]Enriched, len(rows))
	unmatched := 0
	for i, r := range rows {
		out[i].Ingested = r
		if r.Region != nil {
			out[i].MacroRegion = regions[*r.Region]
		}
		if out[i].MacroRegion == nil {
			unmatched++
		}
	}
	return out, unmatched
}

// Cohort returns the YYYY-MM month of an event time, or UnknownCohort for a
// null one.
func Cohort(eventTime *string) (string, error) {
	if eventTime == nil {
		return UnknownCohort, nil
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, *eventTime); err == nil {
			return t.Format("2006-01"), nil
		}
	}
	return "", fmt.Errorf("unparseable event time %q", *eventTime)
}

// Cohorts sums principal and counts loan ids per cohort, sorted by cohort.
// Null principals and null loan ids are skipped.
func Cohorts(rows []Enriched) ([]record.CohortRow, error) {
	acc := make(map[string]*record.CohortRow)
	for i := range rows {
		c, err := Cohort(rows[i].EventTime)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		g, ok := acc[c]
		if !ok {
			g = &record.CohortRow{Cohort: c}
			acc[c] = g
		}
		if p := rows[i].PrincipalAmount; p != nil {
			g.TotalPrincipal += *p
		}
		if rows[i].LoanID != nil {
			g.CreditCount++
		}
	}
	out := make([]record.CohortRow, 0, len(acc))
	for _, g := range acc {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cohort < out[j].Cohort })
	return out, nil
}

type statusKey struct {
	macro, status string
}

type statusAcc struct {
	balance float64
	dpdSum  float64
	dpdN    int
}

// Statuses sums outstanding balance and averages days past due per macro
// region and loan status. Rows with a null macro region or null status are
// left out. The mean covers non-null values only and is null if there are
// none.
func Statuses(rows []Enriched) []record.StatusRow {
	acc := make(map[statusKey]*statusAcc)
	for i := range rows {
		r := &rows[i]
		if r.MacroRegion == nil || r.LoanStatus == nil {
			continue
		}
		k := statusKey{macro: *r.MacroRegion, status: *r.LoanStatus}
		g, ok := acc[k]
		if !ok {
			g = &statusAcc{}
			acc[k] = g
		}
		if b := r.OutstandingBalance; b != nil {
			g.balance += *b
		}
		if d := r.DaysPastDue; d != nil {
			g.dpdSum += float64(*d)
			g.dpdN++
		}
	}
	out := make([]record.StatusRow, 0, len(acc))
	for k, g := range acc {
		row := record.StatusRow{MacroRegion: k.macro, LoanStatus: k.status, OutstandingBalance: g.balance}
		if g.dpdN > 0 {
			row.MeanDaysPastDue = record.Float(g.dpdSum / float64(g.dpdN))
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MacroRegion != out[j].MacroRegion {
			return out[i].MacroRegion < out[j].MacroRegion
		}
		return out[i].LoanStatus < out[j].LoanStatus
	})
	return out
}
