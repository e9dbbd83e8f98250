package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
)

// CohortSchema is the layout of the cohort report.
var CohortSchema = arrow.NewSchema([]arrow.Field{
	{Name: record.ColCohort, Type: arrow.BinaryTypes.String},
	{Name: record.ColTotalPrincipal, Type: arrow.PrimitiveTypes.Float64},
	{Name: record.ColCreditCount, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// StatusSchema is the layout of the consolidated status view.
var StatusSchema = arrow.NewSchema([]arrow.Field{
	{Name: record.ColMacroRegion, Type: arrow.BinaryTypes.String},
	{Name: record.ColLoanStatus, Type: arrow.BinaryTypes.String},
	{Name: record.ColOutstandingBalance, Type: arrow.PrimitiveTypes.Float64},
	{Name: record.ColMeanDaysPastDue, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// WriteCohorts atomically replaces path with the cohort report.
func WriteCohorts(path string, rows []record.CohortRow, opts Options) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), CohortSchema)
	defer b.Release()
	cohort := b.Field(0).(*array.StringBuilder)
	total := b.Field(1).(*array.Float64Builder)
	count := b.Field(2).(*array.Int64Builder)
	for _, r := range rows {
		cohort.Append(r.Cohort)
		total.Append(r.TotalPrincipal)
		count.Append(r.CreditCount)
	}
	return writeRecord(path, CohortSchema, b, opts)
}

// WriteStatuses atomically replaces path with the status view.
func WriteStatuses(path string, rows []record.StatusRow, opts Options) error {
	b := array.NewRecordBuilder(memory.NewGoAllocator(), StatusSchema)
	defer b.Release()
	macro := b.Field(0).(*array.StringBuilder)
	status := b.Field(1).(*array.StringBuilder)
	balance := b.Field(2).(*array.Float64Builder)
	mean := b.Field(3).(*array.Float64Builder)
	for _, r := range rows {
		macro.Append(r.MacroRegion)
		status.Append(r.LoanStatus)
		balance.Append(r.OutstandingBalance)
		appendFloat(mean, r.MeanDaysPastDue)
	}
	return writeRecord(path, StatusSchema, b, opts)
}

func writeRecord(path string, schema *arrow.Schema, b *array.RecordBuilder, opts Options) error {
	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()
	data, err := encode(tbl, opts)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// ReadCohorts loads a cohort report.
func ReadCohorts(ctx context.Context, path string) ([]record.CohortRow, error) {
	var out []record.CohortRow
	err := readTable(ctx, path, func(tbl arrow.Table) error {
		cohorts, totals, counts, err := cohortColumns(tbl)
		if err != nil {
			return err
		}
		out = make([]record.CohortRow, len(cohorts))
		for i := range cohorts {
			if cohorts[i] != nil {
				out[i].Cohort = *cohorts[i]
			}
			if totals[i] != nil {
				out[i].TotalPrincipal = *totals[i]
			}
			if counts[i] != nil {
				out[i].CreditCount = *counts[i]
			}
		}
		return nil
	})
	return out, err
}

func cohortColumns(tbl arrow.Table) ([]*string, []*float64, []*int64, error) {
	c, err := column(tbl, record.ColCohort)
	if err != nil {
		return nil, nil, nil, err
	}
	cohorts, err := decodeStrings(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", record.ColCohort, err)
	}
	if c, err = column(tbl, record.ColTotalPrincipal); err != nil {
		return nil, nil, nil, err
	}
	totals, err := decodeFloats(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", record.ColTotalPrincipal, err)
	}
	if c, err = column(tbl, record.ColCreditCount); err != nil {
		return nil, nil, nil, err
	}
	counts, err := decodeInts(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", record.ColCreditCount, err)
	}
	return cohorts, totals, counts, nil
}

// ReadStatuses loads a status view.
func ReadStatuses(ctx context.Context, path string) ([]record.StatusRow, error) {
	var out []record.StatusRow
	err := readTable(ctx, path, func(tbl arrow.Table) error {
		var cols [2][]*string
		for i, name := range []string{record.ColMacroRegion, record.ColLoanStatus} {
			c, err := column(tbl, name)
			if err != nil {
				return err
			}
			if cols[i], err = decodeStrings(c); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		var nums [2][]*float64
		for i, name := range []string{record.ColOutstandingBalance, record.ColMeanDaysPastDue} {
			c, err := column(tbl, name)
			if err != nil {
				return err
			}
			if nums[i], err = decodeFloats(c); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		out = make([]record.StatusRow, len(cols[0]))
		for i := range out {
			if cols[0][i] != nil {
				out[i].MacroRegion = *cols[0][i]
			}
			if cols[1][i] != nil {
				out[i].LoanStatus = *cols[1][i]
			}
			if nums[0][i] != nil {
				out[i].OutstandingBalance = *nums[0][i]
			}
			out[i].MeanDaysPastDue = nums[1][i]
		}
		return nil
	})
	return out, err
}
