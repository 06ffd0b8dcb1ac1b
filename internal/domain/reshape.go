package domain

import (
	"fmt"
	"math"
)

// normalsScale fixes normals at three decimal places.
const normalsScale = 1000

// Reshape slices records to January of start-1 through December of end and
// splits the window into a temperature and a precipitation matrix.
//
// Both boundary records must exist (ErrRange) and every year inside the window
// must consist of twelve consecutive months (ErrMalformedInput).
func Reshape(records []ClimateRecord, start, end int) (temperature, precipitation ClimateMatrix, err error) {
	if start > end {
		return nil, nil, fmt.Errorf("%w: start year %d is after end year %d", ErrRange, start, end)
	}

	first := indexOfMonth(records, start-1, 1)
	if first < 0 {
		return nil, nil, fmt.Errorf("%w: no record for %d-01 (one year before start %d)", ErrRange, start-1, start)
	}
	last := indexOfMonth(records, end, MonthsPerYear)
	if last < 0 {
		return nil, nil, fmt.Errorf("%w: no record for %d-12", ErrRange, end)
	}
	if last < first {
		return nil, nil, fmt.Errorf("%w: record %d-12 precedes %d-01", ErrMalformedInput, end, start-1)
	}

	window := records[first : last+1]
	years := end - (start - 1) + 1
	if len(window) != years*MonthsPerYear {
		return nil, nil, fmt.Errorf("%w: %d records between %d-01 and %d-12, want %d",
			ErrMalformedInput, len(window), start-1, end, years*MonthsPerYear)
	}

	temperature = make(ClimateMatrix, years)
	precipitation = make(ClimateMatrix, years)
	for i := range years {
		year := start - 1 + i
		temperature[i].Year = year
		precipitation[i].Year = year

		for m, rec := range window[i*MonthsPerYear : (i+1)*MonthsPerYear] {
			if rec.Year != year || rec.Month != m+1 {
				return nil, nil, fmt.Errorf("%w: year %d: expected month %d, got %d-%02d",
					ErrMalformedInput, year, m+1, rec.Year, rec.Month)
			}
			if !isFinite(rec.Temperature) || !isFinite(rec.Precipitation) {
				return nil, nil, fmt.Errorf("%w: non-finite value at %d-%02d", ErrMalformedInput, rec.Year, rec.Month)
			}
			temperature[i].Values[m] = rec.Temperature
			precipitation[i].Values[m] = rec.Precipitation
		}
	}

	return temperature, precipitation, nil
}

// ComputeNormals returns the mean of each month column, rounded to three
// decimals half-to-even.
func ComputeNormals(m ClimateMatrix) (NormalsVector, error) {
	var normals NormalsVector
	if len(m) == 0 {
		return normals, fmt.Errorf("%w: cannot compute normals of an empty matrix", ErrMalformedInput)
	}

	for _, row := range m {
		for j, v := range row.Values {
			normals[j] += v
		}
	}
	n := float64(len(m))
	for j := range normals {
		normals[j] = roundNormal(normals[j] / n)
	}
	return normals, nil
}

func roundNormal(v float64) float64 {
	return math.RoundToEven(v*normalsScale) / normalsScale
}

func indexOfMonth(records []ClimateRecord, year, month int) int {
	for i, rec := range records {
		if rec.Year == year && rec.Month == month {
			return i
		}
	}
	return -1
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
