package record

import "time"

// Column names shared by the CSV source, the bronze/silver parquet files and
// the gold outputs.
const (
	ColLoanID             = "loan_id"
	ColCustomerID         = "customer_id"
	ColEventID            = "event_id"
	ColPrincipalAmount    = "principal_amount"
	ColOutstandingBalance = "outstanding_balance"
	ColDaysPastDue        = "days_past_due"
	ColLoanStatus         = "loan_status"
	ColRegion             = "region"
	ColEventTime          = "event_time"
	ColIngestionTimestamp = "ingestion_timestamp"
	ColSourceFile         = "source_file"

	ColMacroRegion     = "macro_region"
	ColCohort          = "cohort"
	ColTotalPrincipal  = "total_principal"
	ColCreditCount     = "credit_count"
	ColMeanDaysPastDue = "mean_days_past_due"
)

// EventColumns lists the raw event columns in source order.
var EventColumns = []string{
	ColLoanID,
	ColCustomerID,
	ColEventID,
	ColPrincipalAmount,
	ColOutstandingBalance,
	ColDaysPastDue,
	ColLoanStatus,
	ColRegion,
	ColEventTime,
}

// Event is one credit event as read from the source table. A nil pointer is
// a null cell.
type Event struct {
	LoanID             *string
	CustomerID         *string
	EventID            *string
	PrincipalAmount    *float64
	OutstandingBalance *float64
	DaysPastDue        *int64
	LoanStatus         *string
	Region             *string
	EventTime          *string
}

// Ingested is a bronze row: the raw event plus ingestion lineage.
type Ingested struct {
	Event
	IngestionTimestamp time.Time
	SourceFile         string
}

// Field returns the value of the named column, or nil when the column is
// null or unknown. Numeric columns come back as float64.
func (r *Ingested) Field(name string) (interface{}, bool) {
	switch name {
	case ColLoanID:
		return str(r.LoanID), true
	case ColCustomerID:
		return str(r.CustomerID), true
	case ColEventID:
		return str(r.EventID), true
	case ColPrincipalAmount:
		return num(r.PrincipalAmount), true
	case ColOutstandingBalance:
		return num(r.OutstandingBalance), true
	case ColDaysPastDue:
		if r.DaysPastDue == nil {
			return nil, true
		}
		return float64(*r.DaysPastDue), true
	case ColLoanStatus:
		return str(r.LoanStatus), true
	case ColRegion:
		return str(r.Region), true
	case ColEventTime:
		return str(r.EventTime), true
	case ColIngestionTimestamp:
		return r.IngestionTimestamp, true
	case ColSourceFile:
		return r.SourceFile, true
	}
	return nil, false
}

func str(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func num(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// Region is one row of the region reference table.
type Region struct {
	Code        string
	MacroRegion *string
}

// CohortRow is one row of the cohort report.
type CohortRow struct {
	Cohort         string
	TotalPrincipal float64
	CreditCount    int64
}

// StatusRow is one row of the consolidated status view.
type StatusRow struct {
	MacroRegion        string
	LoanStatus         string
	OutstandingBalance float64
	MeanDaysPastDue    *float64
}

// String, Float and Int return pointers to copies of v. They keep test
// fixtures and decoders short.
func String(v string) *string  { return &v }
func Float(v float64) *float64 { return &v }
func Int(v int64) *int64       { return &v }
