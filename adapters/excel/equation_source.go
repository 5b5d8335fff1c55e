package excel

import (
	"context"
	"fmt"
	"strconv"

	"orcacast/domain/behavior"
	"orcacast/ports"
)

// EquationSheet reads equations from a workbook or CSV with one row per
// (behavior, factor). Factor order follows row order; intercept and uncertainty_scale
// may be repeated on every row of a behavior or given once.
type EquationSheet struct {
	config SheetConfig
}

// NewEquationSheet creates a spreadsheet-backed equation source
func NewEquationSheet(config SheetConfig) ports.EquationSource {
	return &EquationSheet{config: config}
}

// Describe names the source
func (s *EquationSheet) Describe() string {
	return "sheet:" + s.config.FilePath
}

// FetchEquations reads the sheet and groups rows into equations
func (s *EquationSheet) FetchEquations(ctx context.Context) ([]behavior.Equation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := NewDataReader(s.config).ReadData()
	if err != nil {
		return nil, err
	}
	return EquationsFromRows(data)
}

// EquationsFromRows groups sheet rows by behavior, preserving first-appearance order
func EquationsFromRows(data *ExcelData) ([]behavior.Equation, error) {
	for _, col := range []string{ColumnBehavior, ColumnFactor, ColumnCoefficient, ColumnIntercept} {
		if !hasHeader(data.Headers, col) {
			return nil, fmt.Errorf("equation sheet is missing column %q", col)
		}
	}

	var order []string
	byLabel := make(map[string]*equationRows)

	for i, row := range data.Rows {
		line := i + 2 // header is line 1
		label := row[ColumnBehavior]
		if label == "" {
			return nil, fmt.Errorf("line %d: empty behavior", line)
		}
		acc, ok := byLabel[label]
		if !ok {
			acc = &equationRows{eq: behavior.Equation{Label: label, Coefficients: map[string]float64{}}}
			byLabel[label] = acc
			order = append(order, label)
		}
		if err := acc.add(row, line); err != nil {
			return nil, err
		}
	}

	out := make([]behavior.Equation, 0, len(order))
	for _, label := range order {
		out = append(out, byLabel[label].eq)
	}
	return out, nil
}

type equationRows struct {
	eq           behavior.Equation
	hasIntercept bool
	hasScale     bool
}

func (a *equationRows) add(row RawRowData, line int) error {
	if err := setOnce(row[ColumnIntercept], &a.eq.Intercept, &a.hasIntercept, ColumnIntercept, line); err != nil {
		return err
	}
	if err := setOnce(row[ColumnUncertaintyScale], &a.eq.UncertaintyScale, &a.hasScale, ColumnUncertaintyScale, line); err != nil {
		return err
	}

	factor := row[ColumnFactor]
	if factor == "" {
		return nil
	}
	coef, err := strconv.ParseFloat(row[ColumnCoefficient], 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid coefficient %q for %s: %w", line, row[ColumnCoefficient], factor, err)
	}
	if _, dup := a.eq.Coefficients[factor]; dup {
		return fmt.Errorf("line %d: factor %s repeated for behavior %s", line, factor, a.eq.Label)
	}
	a.eq.KeyFactors = append(a.eq.KeyFactors, factor)
	a.eq.Coefficients[factor] = coef
	return nil
}

// setOnce parses raw into *dst the first time it is non-empty; later values must agree
func setOnce(raw string, dst *float64, set *bool, column string, line int) error {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid %s %q: %w", line, column, raw, err)
	}
	if *set && v != *dst {
		return fmt.Errorf("line %d: %s %v conflicts with earlier value %v", line, column, v, *dst)
	}
	*dst = v
	*set = true
	return nil
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}
