package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"orcacast/domain/forecast"
)

// DefaultHotspots is the number of top cells listed per behavior
const DefaultHotspots = 5

// BehaviorStats summarises the cell means of one behavior across a grid
type BehaviorStats struct {
	Behavior  string
	Mean      float64
	Min       float64
	Max       float64
	MeanWidth float64
}

// Summarize computes per-behavior statistics over the grid's cell means
func Summarize(grid *forecast.ForecastGrid) ([]BehaviorStats, error) {
	out := make([]BehaviorStats, 0, len(grid.Behaviors))
	for _, label := range grid.Behaviors {
		means := stats.Float64Data(grid.Means(label))
		if means.Len() == 0 {
			continue
		}
		widths := make(stats.Float64Data, 0, len(grid.Points))
		for _, p := range grid.Points {
			if s, ok := p.Behaviors[label]; ok {
				widths = append(widths, s.Width())
			}
		}

		mean, err := means.Mean()
		if err != nil {
			return nil, fmt.Errorf("behavior %s: %w", label, err)
		}
		lo, err := means.Min()
		if err != nil {
			return nil, fmt.Errorf("behavior %s: %w", label, err)
		}
		hi, err := means.Max()
		if err != nil {
			return nil, fmt.Errorf("behavior %s: %w", label, err)
		}
		width, err := widths.Mean()
		if err != nil {
			return nil, fmt.Errorf("behavior %s: %w", label, err)
		}
		out = append(out, BehaviorStats{Behavior: label, Mean: mean, Min: lo, Max: hi, MeanWidth: width})
	}
	return out, nil
}

// Markdown renders a forecast grid as a markdown document
func Markdown(grid *forecast.ForecastGrid, hotspots int) ([]byte, error) {
	if hotspots <= 0 {
		hotspots = DefaultHotspots
	}
	summary, err := Summarize(grid)
	if err != nil {
		return nil, err
	}

	req := grid.Request
	var b strings.Builder
	fmt.Fprintf(&b, "# Behavior forecast %s\n\n", grid.ID)
	fmt.Fprintf(&b, "- Generated: %s\n", grid.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Region: lat %.4f..%.4f, lng %.4f..%.4f\n", req.LatRange.Min, req.LatRange.Max, req.LngRange.Min, req.LngRange.Max)
	fmt.Fprintf(&b, "- Grid: %dx%d cells (%d points)\n", req.GridResolution, req.GridResolution, len(grid.Points))
	fmt.Fprintf(&b, "- Horizon: %d hours from %s\n", req.TimeHours, req.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Equations: `%s`, seed %d\n\n", grid.EquationVersion.Short(), grid.Seed)

	b.WriteString("## Behaviors\n\n")
	b.WriteString("| Behavior | Mean | Min | Max | Mean band width |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, s := range summary {
		fmt.Fprintf(&b, "| %s | %.3f | %.3f | %.3f | %.3f |\n", s.Behavior, s.Mean, s.Min, s.Max, s.MeanWidth)
	}

	for _, s := range summary {
		fmt.Fprintf(&b, "\n## Hotspots: %s\n\n", s.Behavior)
		b.WriteString("| Rank | Latitude | Longitude | Probability |\n")
		b.WriteString("|---:|---:|---:|---:|\n")
		for i, h := range grid.Hotspots(s.Behavior, hotspots) {
			fmt.Fprintf(&b, "| %d | %.5f | %.5f | %.3f |\n", i+1, h.Latitude, h.Longitude, h.MeanProbability)
		}
	}

	return []byte(b.String()), nil
}

// HTML renders the markdown report as a complete HTML page
func HTML(grid *forecast.ForecastGrid, hotspots int) ([]byte, error) {
	md, err := Markdown(grid, hotspots)
	if err != nil {
		return nil, err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Behavior forecast %s", grid.ID),
	})
	return markdown.Render(doc, renderer), nil
}
