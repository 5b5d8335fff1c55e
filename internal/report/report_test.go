package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orcacast/domain/core"
	"orcacast/domain/forecast"
)

func sampleGrid() *forecast.ForecastGrid {
	point := func(lat, lng, feeding, resting float64) forecast.ForecastPoint {
		return forecast.ForecastPoint{
			Latitude:  lat,
			Longitude: lng,
			Behaviors: map[string]forecast.BehaviorSummary{
				"feeding": {MeanProbability: feeding, LowerBound: feeding - 0.1, UpperBound: feeding + 0.1, SampleCount: 100},
				"resting": {MeanProbability: resting, LowerBound: resting, UpperBound: resting, SampleCount: 100},
			},
		}
	}
	return &forecast.ForecastGrid{
		ID:              core.ForecastID("0190a5c2-7d1e-7b3a-9f00-4c2b8e1d6a10"),
		CreatedAt:       time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		EquationVersion: core.EquationSetHash("9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"),
		Seed:            42,
		Behaviors:       []string{"feeding", "resting"},
		Request: forecast.GridRequest{
			LatRange:       forecast.Range{Min: 48, Max: 49},
			LngRange:       forecast.Range{Min: -124, Max: -123},
			GridResolution: 2,
			TimeHours:      1,
			StartTime:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Points: []forecast.ForecastPoint{
			point(48, -124, 0.2, 0.3),
			point(48, -123, 0.6, 0.3),
			point(49, -124, 0.4, 0.3),
			point(49, -123, 0.8, 0.3),
		},
	}
}

func TestSummarize(t *testing.T) {
	summary, err := Summarize(sampleGrid())
	require.NoError(t, err)
	require.Len(t, summary, 2)

	feeding := summary[0]
	assert.Equal(t, "feeding", feeding.Behavior)
	assert.InDelta(t, 0.5, feeding.Mean, 1e-12)
	assert.Equal(t, 0.2, feeding.Min)
	assert.Equal(t, 0.8, feeding.Max)
	assert.InDelta(t, 0.2, feeding.MeanWidth, 1e-12)

	resting := summary[1]
	assert.Equal(t, 0.0, resting.MeanWidth)
}

func TestMarkdownListsHotspots(t *testing.T) {
	md, err := Markdown(sampleGrid(), 2)
	require.NoError(t, err)
	text := string(md)

	assert.True(t, strings.HasPrefix(text, "# Behavior forecast 0190a5c2-"))
	assert.Contains(t, text, "2x2 cells (4 points)")
	assert.Contains(t, text, "| feeding | 0.500 | 0.200 | 0.800 | 0.200 |")

	hotspots := text[strings.Index(text, "## Hotspots: feeding"):]
	assert.Contains(t, hotspots, "| 1 | 49.00000 | -123.00000 | 0.800 |")
	assert.Contains(t, hotspots, "| 2 | 48.00000 | -123.00000 | 0.600 |")
	assert.NotContains(t, hotspots[:strings.Index(hotspots, "## Hotspots: resting")], "| 3 |")
}

func TestMarkdownDefaultHotspots(t *testing.T) {
	md, err := Markdown(sampleGrid(), 0)
	require.NoError(t, err)
	// only four cells exist, so all of them are ranked
	assert.Contains(t, string(md), "| 4 | 48.00000 | -124.00000 | 0.200 |")
}

func TestHTML(t *testing.T) {
	page, err := HTML(sampleGrid(), 3)
	require.NoError(t, err)
	text := string(page)

	assert.Contains(t, text, "<html")
	assert.Contains(t, text, "<title>Behavior forecast 0190a5c2-7d1e-7b3a-9f00-4c2b8e1d6a10</title>")
	assert.Contains(t, text, "<table>")
	assert.Contains(t, text, `id="hotspots-feeding"`)
}
