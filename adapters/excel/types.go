package excel

// RawRowData is one sheet row keyed by trimmed header
type RawRowData map[string]string

// ExcelData holds a sheet or CSV file as headers plus rows
type ExcelData struct {
	Headers []string
	Rows    []RawRowData
}
