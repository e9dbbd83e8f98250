// Package source reads the delimited input tables: the credit events table
// and the region reference table.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
)

// ErrMissingColumn is returned when a required header column is absent.
var ErrMissingColumn = errors.New("missing required column")

// header maps column names to their index in a CSV row.
type header map[string]int

func readHeader(r *csv.Reader, required []string) (header, error) {
	names, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty table: no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		h[n] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return h, nil
}

// cell returns the trimmed value of col, or nil for an empty or null cell.
func (h header) cell(row []string, col string) *string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return nil
	}
	v := strings.TrimSpace(row[i])
	if isNull(v) {
		return nil
	}
	return &v
}

// ReadEvents reads the whole credit events table at path.
func ReadEvents(path string) ([]record.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	events, err := DecodeEvents(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// DecodeEvents decodes a credit events table from r. Every column in
// record.EventColumns must be present; extra columns are ignored.
func DecodeEvents(r io.Reader) ([]record.Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr, record.EventColumns)
	if err != nil {
		return nil, err
	}

	var out []record.Event
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev, err := decodeEvent(h, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func decodeEvent(h header, row []string) (record.Event, error) {
	ev := record.Event{
		LoanID:     h.cell(row, record.ColLoanID),
		CustomerID: h.cell(row, record.ColCustomerID),
		EventID:    h.cell(row, record.ColEventID),
		LoanStatus: h.cell(row, record.ColLoanStatus),
		Region:     h.cell(row, record.ColRegion),
		EventTime:  h.cell(row, record.ColEventTime),
	}
	var err error
	if ev.PrincipalAmount, err = parseFloat(h.cell(row, record.ColPrincipalAmount)); err != nil {
		return ev, fmt.Errorf("%s: %w", record.ColPrincipalAmount, err)
	}
	if ev.OutstandingBalance, err = parseFloat(h.cell(row, record.ColOutstandingBalance)); err != nil {
		return ev, fmt.Errorf("%s: %w", record.ColOutstandingBalance, err)
	}
	if ev.DaysPastDue, err = parseInt(h.cell(row, record.ColDaysPastDue)); err != nil {
		return ev, fmt.Errorf("%s: %w", record.ColDaysPastDue, err)
	}
	return ev, nil
}

func parseFloat(s *string) (*float64, error) {
	if s == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", *s)
	}
	return &f, nil
}

// parseInt accepts integral floats such as "3.0", which is how integer
// columns with nulls usually get exported.
func parseInt(s *string) (*int64, error) {
	if s == nil {
		return nil, nil
	}
	if n, err := strconv.ParseInt(*s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil || f != math.Trunc(f) {
		return nil, fmt.Errorf("invalid integer %q", *s)
	}
	n := int64(f)
	return &n, nil
}

// nullMarkers is the default NA set of pandas' read_csv. Matching is case
// sensitive, so a region code "na" stays a value while "NA" is null.
var nullMarkers = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true,
	"-1.#IND": true, "-1.#QNAN": true, "-NaN": true, "-nan": true,
	"1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

func isNull(s string) bool { return nullMarkers[s] }

// ReadRegions reads the region reference table at path.
func ReadRegions(path string) ([]record.Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	regions, err := DecodeRegions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return regions, nil
}

// DecodeRegions decodes a region reference table. Rows with an empty region
// code cannot match anything and are skipped.
func DecodeRegions(r io.Reader) ([]record.Region, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr, []string{record.ColRegion, record.ColMacroRegion})
	if err != nil {
		return nil, err
	}
	var out []record.Region
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		code := h.cell(row, record.ColRegion)
		if code == nil {
			continue
		}
		out = append(out, record.Region{Code: *code, MacroRegion: h.cell(row, record.ColMacroRegion)})
	}
	return out, nil
}
