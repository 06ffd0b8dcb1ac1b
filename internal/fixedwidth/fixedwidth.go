// Package fixedwidth encodes engine input files and decodes engine output
// tables.
//
// The engine reads and writes the same column layout: an optional year label
// right-aligned in five columns followed by numeric fields right-aligned in
// fixed-width columns. Encoded fields always keep at least one leading blank.
// A value too wide for its column at the layout precision is written with
// fewer decimals; one that does not fit even as an integer is rejected.
package fixedwidth

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
)

// Layout describes one fixed-width row.
type Layout struct {
	LabelWidth int // 0 when rows carry no year label
	FieldWidth int
	Precision  int
	Fields     int
}

// Layouts of the engine files.
var (
	// TableLayout is shared by the monthly matrices and the PDSI.tbl outputs.
	TableLayout     = Layout{LabelWidth: 5, FieldWidth: 7, Precision: 2, Fields: domain.MonthsPerYear}
	NormalsLayout   = Layout{FieldWidth: 8, Precision: 3, Fields: domain.MonthsPerYear}
	ParameterLayout = Layout{FieldWidth: 8, Precision: 3, Fields: 2}
)

// LineWidth is the number of significant columns in one row.
func (l Layout) LineWidth() int {
	return l.LabelWidth + l.Fields*l.FieldWidth
}

// appendRow encodes one row. label is ignored when the layout has no label column.
func (l Layout) appendRow(buf []byte, label int, values []float64) ([]byte, error) {
	if len(values) != l.Fields {
		return buf, fmt.Errorf("%w: %d values for a %d-field row", domain.ErrMalformedInput, len(values), l.Fields)
	}
	if l.LabelWidth > 0 {
		s := strconv.Itoa(label)
		if len(s) > l.LabelWidth {
			return buf, fmt.Errorf("%w: year %s exceeds %d-column field", domain.ErrMalformedInput, s, l.LabelWidth)
		}
		buf = pad(buf, s, l.LabelWidth)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return buf, fmt.Errorf("%w: non-finite value %v", domain.ErrMalformedInput, v)
		}
		s := formatField(v, l.Precision, l.FieldWidth)
		if len(s) >= l.FieldWidth {
			return buf, fmt.Errorf("%w: value %s does not fit a %d-column field", domain.ErrMalformedInput, s, l.FieldWidth)
		}
		buf = pad(buf, s, l.FieldWidth)
	}
	return append(buf, '\n'), nil
}

// formatField renders v with at most prec decimals, dropping decimals until it
// leaves room for a leading blank in a width-column field.
func formatField(v float64, prec, width int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	for p := prec - 1; len(s) >= width && p >= 0; p-- {
		s = strconv.FormatFloat(v, 'f', p, 64)
	}
	return s
}

// decodeRow parses the significant columns of line. Anything past them must be
// blank.
func (l Layout) decodeRow(line string) (int, []float64, error) {
	width := l.LineWidth()
	if len(line) < width {
		return 0, nil, fmt.Errorf("%d columns, want %d", len(line), width)
	}
	if rest := line[width:]; strings.TrimSpace(rest) != "" {
		return 0, nil, fmt.Errorf("unexpected text %q after column %d", strings.TrimSpace(rest), width)
	}

	var label int
	if l.LabelWidth > 0 {
		field := strings.TrimSpace(line[:l.LabelWidth])
		v, err := strconv.Atoi(field)
		if err != nil {
			return 0, nil, fmt.Errorf("year field %q: not an integer", field)
		}
		label = v
	}

	values := make([]float64, l.Fields)
	for i := range values {
		lo := l.LabelWidth + i*l.FieldWidth
		field := strings.TrimSpace(line[lo : lo+l.FieldWidth])
		v, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, nil, fmt.Errorf("field %d %q: not a number", i+1, field)
		}
		values[i] = v
	}
	return label, values, nil
}

// decodeRows reads every non-blank line of r. Row errors wrap
// domain.ErrMalformedOutput with their line number.
func (l Layout) decodeRows(r io.Reader, fn func(label int, values []float64)) (int, error) {
	sc := bufio.NewScanner(r)
	lineNo, rows := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, values, err := l.decodeRow(line)
		if err != nil {
			return rows, fmt.Errorf("%w: line %d: %v", domain.ErrMalformedOutput, lineNo, err)
		}
		fn(label, values)
		rows++
	}
	if err := sc.Err(); err != nil {
		return rows, fmt.Errorf("%w: read table: %v", domain.ErrIO, err)
	}
	return rows, nil
}

func pad(buf []byte, s string, width int) []byte {
	for range width - len(s) {
		buf = append(buf, ' ')
	}
	return append(buf, s...)
}

// EncodeMatrix renders one row per year in TableLayout.
func EncodeMatrix(m domain.ClimateMatrix) ([]byte, error) {
	buf := make([]byte, 0, len(m)*(TableLayout.LineWidth()+1))
	for _, row := range m {
		var err error
		if buf, err = TableLayout.appendRow(buf, row.Year, row.Values[:]); err != nil {
			return nil, fmt.Errorf("year %d: %w", row.Year, err)
		}
	}
	return buf, nil
}

// EncodeNormals renders the single normals row.
func EncodeNormals(n domain.NormalsVector) ([]byte, error) {
	return NormalsLayout.appendRow(nil, 0, n[:])
}

// EncodeParameters renders the single parameter row: water capacity, latitude.
func EncodeParameters(site domain.SiteParameters) ([]byte, error) {
	return ParameterLayout.appendRow(nil, 0, []float64{site.AvailableWaterCapacity, site.Latitude})
}

// ReadTable decodes a year-labelled monthly table in TableLayout.
func ReadTable(r io.Reader) (domain.ResultTable, error) {
	var rows []domain.MonthlyRow
	_, err := TableLayout.decodeRows(r, func(year int, values []float64) {
		row := domain.MonthlyRow{Year: year}
		copy(row.Values[:], values)
		rows = append(rows, row)
	})
	if err != nil {
		return domain.ResultTable{}, err
	}
	return domain.NewResultTable(rows), nil
}
