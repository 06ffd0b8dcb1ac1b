// Package csvio reads climate series from CSV and writes result tables back
// out as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

// Accepted header names for each climate column, lowercased.
var columnAliases = map[string][]string{
	"year":          {"year", "yr"},
	"month":         {"month", "mon", "mo"},
	"temperature":   {"temperature", "temp", "t", "tavg"},
	"precipitation": {"precipitation", "precip", "prcp", "p"},
}

var recordHeader = []string{"year", "month", "temperature", "precipitation"}

// ReadRecords parses a headered climate CSV. Column order is free; lines
// starting with '#' are ignored. Parse failures wrap domain.ErrMalformedInput.
func ReadRecords(r io.Reader) ([]domain.ClimateRecord, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty csv", domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", domain.ErrMalformedInput, err)
	}
	colIdx, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var records []domain.ClimateRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv: %v", domain.ErrMalformedInput, err)
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseRecord(row, colIdx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrMalformedInput, line, err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no data rows", domain.ErrMalformedInput)
	}
	return records, nil
}

func resolveColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	colIdx := make(map[string]int, len(columnAliases))
	for _, col := range recordHeader {
		for _, alias := range columnAliases[col] {
			if i, ok := byName[alias]; ok {
				colIdx[col] = i
				break
			}
		}
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("%w: missing %q column in header %v", domain.ErrMalformedInput, col, header)
		}
	}
	return colIdx, nil
}

func parseRecord(row []string, colIdx map[string]int) (domain.ClimateRecord, error) {
	field := func(col string) string {
		if i := colIdx[col]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var rec domain.ClimateRecord
	var err error
	if rec.Year, err = strconv.Atoi(field("year")); err != nil {
		return rec, fmt.Errorf("year %q: not an integer", field("year"))
	}
	if rec.Month, err = strconv.Atoi(field("month")); err != nil || rec.Month < 1 || rec.Month > domain.MonthsPerYear {
		return rec, fmt.Errorf("month %q: want 1-12", field("month"))
	}
	if rec.Temperature, err = strconv.ParseFloat(field("temperature"), 64); err != nil {
		return rec, fmt.Errorf("temperature %q: not a number", field("temperature"))
	}
	if rec.Precipitation, err = strconv.ParseFloat(field("precipitation"), 64); err != nil {
		return rec, fmt.Errorf("precipitation %q: not a number", field("precipitation"))
	}
	return rec, nil
}

// WriteRecords writes records with the canonical header.
func WriteRecords(w io.Writer, records []domain.ClimateRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			strconv.FormatFloat(r.Temperature, 'f', -1, 64),
			strconv.FormatFloat(r.Precipitation, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes a result table as CSV: the column labels, then one row
// per year with values at two decimals.
func WriteTable(w io.Writer, table domain.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, 1+domain.MonthsPerYear)
	for _, r := range table.Rows {
		row[0] = strconv.Itoa(r.Year)
		for i, v := range r.Values {
			row[i+1] = strconv.FormatFloat(v, 'f', 2, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
