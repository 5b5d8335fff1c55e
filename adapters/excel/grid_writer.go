package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"orcacast/domain/forecast"
)

// WriteGrid exports a forecast grid to an xlsx workbook: a "forecast" sheet with one row
// per (cell, behavior) and a "request" sheet echoing the generation parameters.
func WriteGrid(grid *forecast.ForecastGrid, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "forecast"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"latitude", "longitude", "behavior", "mean_probability", "lower_bound", "upper_bound", "sample_count"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for _, p := range grid.Points {
		for _, label := range grid.Behaviors {
			s, ok := p.Behaviors[label]
			if !ok {
				continue
			}
			values := []interface{}{p.Latitude, p.Longitude, label, s.MeanProbability, s.LowerBound, s.UpperBound, s.SampleCount}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	if _, err := f.NewSheet("request"); err != nil {
		return fmt.Errorf("failed to add request sheet: %w", err)
	}
	meta := [][]interface{}{
		{"id", grid.ID.String()},
		{"created_at", grid.CreatedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"equation_version", grid.EquationVersion.String()},
		{"seed", grid.Seed},
		{"lat_min", grid.Request.LatRange.Min},
		{"lat_max", grid.Request.LatRange.Max},
		{"lng_min", grid.Request.LngRange.Min},
		{"lng_max", grid.Request.LngRange.Max},
		{"grid_resolution", grid.Request.GridResolution},
		{"time_hours", grid.Request.TimeHours},
	}
	for i, kv := range meta {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("request", cell, &kv); err != nil {
			return fmt.Errorf("failed to write request metadata: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
