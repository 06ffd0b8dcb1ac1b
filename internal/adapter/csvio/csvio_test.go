package csvio_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/couchcryptid/palmer-drought-service/internal/adapter/csvio"
	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	"github.com/couchcryptid/palmer-drought-service/internal/synthetic"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	in := "# station 42\n" +
		"Precip,Year,Month,Temp\n" +
		"41.5,1959,1,-3.2\n" +
		"38.0, 1959, 2, -1.0\n"

	got, err := csvio.ReadRecords(strings.NewReader(in))
	require.NoError(t, err)

	want := []domain.ClimateRecord{
		{Year: 1959, Month: 1, Temperature: -3.2, Precipitation: 41.5},
		{Year: 1959, Month: 2, Temperature: -1.0, Precipitation: 38.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecords_Errors(t *testing.T) {
	tests := map[string]struct {
		in      string
		wantMsg string
	}{
		"empty":          {"", "empty csv"},
		"missing column": {"year,month,temperature\n1959,1,2\n", `"precipitation"`},
		"no rows":        {"year,month,temperature,precipitation\n", "no data rows"},
		"bad month":      {"year,month,temperature,precipitation\n1959,13,1,1\n", "line 2"},
		"bad number":     {"year,month,temperature,precipitation\n1959,1,warm,1\n", "temperature"},
		"ragged row":     {"year,month,temperature,precipitation\n1959,1,1\n", "read csv"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := csvio.ReadRecords(strings.NewReader(tt.in))
			require.ErrorIs(t, err, domain.ErrMalformedInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	records := synthetic.Records(synthetic.MidLatitude, 1990, 1991, 5)

	var buf bytes.Buffer
	require.NoError(t, csvio.WriteRecords(&buf, records))
	assert.True(t, strings.HasPrefix(buf.String(), "year,month,temperature,precipitation\n"))

	got, err := csvio.ReadRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestWriteTable(t *testing.T) {
	table := domain.NewResultTable([]domain.MonthlyRow{
		{Year: 1960, Values: [12]float64{-1.25, 0, 0.5, 1, 2, 3, 4, 5, 6, 7, 8, 9.999}},
	})

	var buf bytes.Buffer
	require.NoError(t, csvio.WriteTable(&buf, table))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "YEAR,JAN,FEB,MAR,APR,MAY,JUN,JUL,AUG,SEP,OCT,NOV,DEC", lines[0])
	assert.Equal(t, "1960,-1.25,0.00,0.50,1.00,2.00,3.00,4.00,5.00,6.00,7.00,8.00,10.00", lines[1])
}
