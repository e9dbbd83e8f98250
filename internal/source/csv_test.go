package source

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cuervinho/Data-engineering-challenge/internal/record"
)

const eventsCSV = `loan_id,customer_id,event_id,principal_amount,outstanding_balance,days_past_due,loan_status,region,event_time,extra
L1,C1,E1,1000.5,800,0,current,R1,2024-01-15 10:00:00,x
L2,,E2,2000,1500,3.0,late,R2,2024-02-01T00:00:00Z,y
,C3,E3,NaN,,,,,,z
`

func TestDecodeEvents(t *testing.T) {
	events, err := DecodeEvents(strings.NewReader(eventsCSV))
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "L1", *first.LoanID)
	assert.Equal(t, "C1", *first.CustomerID)
	assert.Equal(t, 1000.5, *first.PrincipalAmount)
	assert.Equal(t, int64(0), *first.DaysPastDue)
	assert.Equal(t, "2024-01-15 10:00:00", *first.EventTime)

	second := events[1]
	assert.Nil(t, second.CustomerID)
	assert.Equal(t, int64(3), *second.DaysPastDue)

	third := events[2]
	assert.Nil(t, third.LoanID)
	assert.Nil(t, third.PrincipalAmount)
	assert.Nil(t, third.OutstandingBalance)
	assert.Nil(t, third.DaysPastDue)
	assert.Nil(t, third.LoanStatus)
	assert.Nil(t, third.EventTime)
}

func TestDecodeEvents_MissingColumn(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader("loan_id,customer_id\nL1,C1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), record.ColPrincipalAmount)
}

func TestDecodeEvents_BadNumber(t *testing.T) {
	in := strings.Join(record.EventColumns, ",") + "\nL1,C1,E1,abc,1,1,current,R1,2024-01-01\n"
	_, err := DecodeEvents(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), record.ColPrincipalAmount)
}

func TestDecodeEvents_FractionalDaysPastDue(t *testing.T) {
	in := strings.Join(record.EventColumns, ",") + "\nL1,C1,E1,1,1,2.5,current,R1,2024-01-01\n"
	_, err := DecodeEvents(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), record.ColDaysPastDue)
}

func TestDecodeEvents_EmptyInput(t *testing.T) {
	_, err := DecodeEvents(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadEvents_NotFound(t *testing.T) {
	_, err := ReadEvents(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.csv")
	body := "region,macro_region,risk_level\nR1,North,low\nR2,,high\n,South,low\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	regions, err := ReadRegions(path)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "R1", regions[0].Code)
	assert.Equal(t, "North", *regions[0].MacroRegion)
	assert.Equal(t, "R2", regions[1].Code)
	assert.Nil(t, regions[1].MacroRegion)
}

func TestNullMarkersAreCaseSensitive(t *testing.T) {
	regions, err := DecodeRegions(strings.NewReader("region,macro_region\nna,None\nNA,North\nnone,n/a\nR1,NA\nR2,Na\n"))
	require.NoError(t, err)

	// "NA" as a code is null and its row is dropped.
	require.Len(t, regions, 4)
	assert.Equal(t, "na", regions[0].Code)
	assert.Nil(t, regions[0].MacroRegion)
	assert.Equal(t, "none", regions[1].Code)
	assert.Nil(t, regions[1].MacroRegion)
	assert.Equal(t, "R1", regions[2].Code)
	assert.Nil(t, regions[2].MacroRegion)
	require.NotNil(t, regions[3].MacroRegion)
	assert.Equal(t, "Na", *regions[3].MacroRegion)
}
