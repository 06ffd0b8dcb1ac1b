package domain

// MonthsPerYear is the column count of every matrix and table.
const MonthsPerYear = 12

// MonthLabels are the uppercased month abbreviations used as table headers.
var MonthLabels = [MonthsPerYear]string{
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

// ClimateRecord is one month of observed climate at a site.
type ClimateRecord struct {
	Year          int     `json:"year" yaml:"year"`
	Month         int     `json:"month" yaml:"month"`
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	Precipitation float64 `json:"precipitation" yaml:"precipitation"`
}

// MonthlyRow is a year label followed by twelve monthly values.
type MonthlyRow struct {
	Year   int                    `json:"year"`
	Values [MonthsPerYear]float64 `json:"values"`
}

// ClimateMatrix holds one climate variable as year rows in ascending order.
type ClimateMatrix []MonthlyRow

// Years returns the row labels in matrix order.
func (m ClimateMatrix) Years() []int {
	years := make([]int, len(m))
	for i, row := range m {
		years[i] = row.Year
	}
	return years
}

// NormalsVector is the per-month mean of a ClimateMatrix.
type NormalsVector [MonthsPerYear]float64

// SiteParameters are the scalar site inputs the engine needs.
type SiteParameters struct {
	// AvailableWaterCapacity of the soil in centimetres.
	AvailableWaterCapacity float64 `json:"awc" yaml:"awc"`
	// Latitude in decimal degrees, positive north.
	Latitude float64 `json:"latitude" yaml:"latitude"`
}

// TableColumns returns the header labels of a result table: YEAR, JAN … DEC.
func TableColumns() []string {
	cols := make([]string, 0, MonthsPerYear+1)
	cols = append(cols, "YEAR")
	cols = append(cols, MonthLabels[:]...)
	return cols
}

// ResultTable is one engine output table.
type ResultTable struct {
	Columns []string     `json:"columns"`
	Rows    []MonthlyRow `json:"rows"`
}

// NewResultTable labels rows with the standard YEAR + month headers.
func NewResultTable(rows []MonthlyRow) ResultTable {
	return ResultTable{Columns: TableColumns(), Rows: rows}
}

// Years returns the row labels in table order.
func (t ResultTable) Years() []int {
	years := make([]int, len(t.Rows))
	for i, row := range t.Rows {
		years[i] = row.Year
	}
	return years
}

