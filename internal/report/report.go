// Package report renders pipeline outputs as terminal tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/Cuervinho/Data-engineering-challenge/internal/columnar"
	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
	"github.com/Cuervinho/Data-engineering-challenge/internal/stage"
)

const nullValue = "null"

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if title != "" {
		t.SetTitle("%s", title)
	}
	// Keep column names as they are stored.
	t.Style().Format.Header = text.FormatDefault
	return t
}

func float(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// Cohorts writes the cohort report.
func Cohorts(w io.Writer, rows []record.CohortRow) {
	t := newTable(w, "Cohort report")
	t.AppendHeader(table.Row{record.ColCohort, record.ColTotalPrincipal, record.ColCreditCount})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Cohort, float(r.TotalPrincipal), r.CreditCount})
	}
	t.Render()
}

// Statuses writes the consolidated status view.
func Statuses(w io.Writer, rows []record.StatusRow) {
	t := newTable(w, "Status view")
	t.AppendHeader(table.Row{record.ColMacroRegion, record.ColLoanStatus, record.ColOutstandingBalance, record.ColMeanDaysPastDue})
	for _, r := range rows {
		mean := nullValue
		if r.MeanDaysPastDue != nil {
			mean = float(*r.MeanDaysPastDue)
		}
		t.AppendRow(table.Row{r.MacroRegion, r.LoanStatus, float(r.OutstandingBalance), mean})
	}
	t.Render()
}

// Summary writes the schema and sample rows of a parquet file.
func Summary(w io.Writer, s *columnar.Summary) {
	fmt.Fprintf(w, "%s: %d rows, %d columns\n", s.Path, s.Rows, len(s.Fields))

	schema := newTable(w, "Schema")
	schema.AppendHeader(table.Row{"column", "type", "nullable"})
	header := make(table.Row, len(s.Fields))
	for i, f := range s.Fields {
		schema.AppendRow(table.Row{f.Name, f.Type, f.Nullable})
		header[i] = f.Name
	}
	schema.Render()

	if len(s.Sample) == 0 {
		return
	}
	sample := newTable(w, fmt.Sprintf("First %d rows", len(s.Sample)))
	sample.AppendHeader(header)
	for _, row := range s.Sample {
		// go-pretty doesn't expect nil values.
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = cell(v)
		}
		sample.AppendRow(out)
	}
	sample.Render()
}

func cell(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nullValue
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return v
}

// Results writes one line per stage run.
func Results(w io.Writer, results []*stage.Result) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"stage", "status", "duration_ms", "counters", "error"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Stage, r.Status, r.DurationMs, counters(r.Counters), r.Error})
	}
	t.Render()
}

func counters(m map[string]int64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}
