package excel

// Column names of an equation sheet, one row per (behavior, factor)
const (
	ColumnBehavior         = "behavior"
	ColumnFactor           = "factor"
	ColumnCoefficient      = "coefficient"
	ColumnIntercept        = "intercept"
	ColumnUncertaintyScale = "uncertainty_scale"
)

// SheetConfig selects where equations live in a workbook
type SheetConfig struct {
	FilePath  string `json:"file_path"`
	SheetName string `json:"sheet_name"`
}

// DefaultSheetConfig reads Sheet1 of path
func DefaultSheetConfig(path string) SheetConfig {
	return SheetConfig{FilePath: path, SheetName: "Sheet1"}
}
