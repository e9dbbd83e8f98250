package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
)

var timestampUTC = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// EventSchema is the layout of bronze, silver and quarantine files.
var EventSchema = arrow.NewSchema([]arrow.Field{
	{Name: record.ColLoanID, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColCustomerID, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColEventID, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColPrincipalAmount, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: record.ColOutstandingBalance, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: record.ColDaysPastDue, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: record.ColLoanStatus, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColRegion, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColEventTime, Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: record.ColIngestionTimestamp, Type: timestampUTC, Nullable: false},
	{Name: record.ColSourceFile, Type: arrow.BinaryTypes.String, Nullable: false},
}, nil)

func eventsTable(mem memory.Allocator, rows []record.Ingested) arrow.Table {
	b := array.NewRecordBuilder(mem, EventSchema)
	defer b.Release()

	loanID := b.Field(0).(*array.StringBuilder)
	customerID := b.Field(1).(*array.StringBuilder)
	eventID := b.Field(2).(*array.StringBuilder)
	principal := b.Field(3).(*array.Float64Builder)
	balance := b.Field(4).(*array.Float64Builder)
	dpd := b.Field(5).(*array.Int64Builder)
	status := b.Field(6).(*array.StringBuilder)
	region := b.Field(7).(*array.StringBuilder)
	eventTime := b.Field(8).(*array.StringBuilder)
	ingestedAt := b.Field(9).(*array.TimestampBuilder)
	sourceFile := b.Field(10).(*array.StringBuilder)

	for i := range rows {
		r := &rows[i]
		appendString(loanID, r.LoanID)
		appendString(customerID, r.CustomerID)
		appendString(eventID, r.EventID)
		appendFloat(principal, r.PrincipalAmount)
		appendFloat(balance, r.OutstandingBalance)
		appendInt(dpd, r.DaysPastDue)
		appendString(status, r.LoanStatus)
		appendString(region, r.Region)
		appendString(eventTime, r.EventTime)
		ingestedAt.Append(arrow.Timestamp(r.IngestionTimestamp.UnixMicro()))
		sourceFile.Append(r.SourceFile)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(EventSchema, []arrow.Record{rec})
}

func encodeEvents(rows []record.Ingested, opts Options) ([]byte, error) {
	tbl := eventsTable(memory.NewGoAllocator(), rows)
	defer tbl.Release()
	return encode(tbl, opts)
}

// WriteEvents atomically replaces path with rows.
func WriteEvents(path string, rows []record.Ingested, opts Options) error {
	data, err := encodeEvents(rows, opts)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// CreateEvents writes rows to a new file at path. It never overwrites: an
// existing file yields ErrExists.
func CreateEvents(path string, rows []record.Ingested, opts Options) error {
	data, err := encodeEvents(rows, opts)
	if err != nil {
		return err
	}
	return writeExclusive(path, data)
}

// ReadEvents loads every row of an event file in file order.
func ReadEvents(ctx context.Context, path string) ([]record.Ingested, error) {
	var out []record.Ingested
	err := readTable(ctx, path, func(tbl arrow.Table) error {
		rows, err := decodeEvents(tbl)
		out = rows
		return err
	})
	return out, err
}

func decodeEvents(tbl arrow.Table) ([]record.Ingested, error) {
	strs := make(map[string][]*string)
	for _, name := range []string{
		record.ColLoanID, record.ColCustomerID, record.ColEventID,
		record.ColLoanStatus, record.ColRegion, record.ColEventTime, record.ColSourceFile,
	} {
		c, err := column(tbl, name)
		if err != nil {
			return nil, err
		}
		if strs[name], err = decodeStrings(c); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	floats := make(map[string][]*float64)
	for _, name := range []string{record.ColPrincipalAmount, record.ColOutstandingBalance} {
		c, err := column(tbl, name)
		if err != nil {
			return nil, err
		}
		if floats[name], err = decodeFloats(c); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	c, err := column(tbl, record.ColDaysPastDue)
	if err != nil {
		return nil, err
	}
	dpd, err := decodeInts(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", record.ColDaysPastDue, err)
	}
	if c, err = column(tbl, record.ColIngestionTimestamp); err != nil {
		return nil, err
	}
	ingestedAt, err := decodeTimes(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", record.ColIngestionTimestamp, err)
	}

	n := int(tbl.NumRows())
	out := make([]record.Ingested, n)
	for i := 0; i < n; i++ {
		r := &out[i]
		r.LoanID = strs[record.ColLoanID][i]
		r.CustomerID = strs[record.ColCustomerID][i]
		r.EventID = strs[record.ColEventID][i]
		r.LoanStatus = strs[record.ColLoanStatus][i]
		r.Region = strs[record.ColRegion][i]
		r.EventTime = strs[record.ColEventTime][i]
		r.PrincipalAmount = floats[record.ColPrincipalAmount][i]
		r.OutstandingBalance = floats[record.ColOutstandingBalance][i]
		r.DaysPastDue = dpd[i]
		r.IngestionTimestamp = ingestedAt[i]
		if sf := strs[record.ColSourceFile][i]; sf != nil {
			r.SourceFile = *sf
		}
	}
	return out, nil
}
