// Package chart renders dashboard histograms as PNG bar charts.
package chart

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/collision-dashboard/internal/dashboard"
	"github.com/wcharczuk/go-chart/v2"
)

const (
	width      = 1400
	height     = 400
	barWidth   = 16
	barSpacing = 4

	// labelEvery thins the minute axis so labels do not overlap.
	labelEvery = 5
)

// RenderHistogram writes h to w as a PNG bar chart of crashes per minute.
func RenderHistogram(w io.Writer, h dashboard.Histogram) error {
	if len(h.Buckets) == 0 {
		return fmt.Errorf("render hour %d: histogram has no buckets", h.Hour)
	}

	bars := make([]chart.Value, len(h.Buckets))
	maxCrashes := 0
	for i, b := range h.Buckets {
		label := ""
		if b.Minute%labelEvery == 0 {
			label = strconv.Itoa(b.Minute)
		}
		bars[i] = chart.Value{
			Value: float64(b.Crashes),
			Label: label,
			Style: chart.Style{
				FillColor:   chart.ColorBlue,
				StrokeColor: chart.ColorBlue,
				StrokeWidth: 1,
			},
		}
		maxCrashes = max(maxCrashes, b.Crashes)
	}

	graph := chart.BarChart{
		Title:      h.Label,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Name: "crashes",
			// An all-zero hour still needs a non-empty range.
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(maxCrashes, 1))},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return strconv.Itoa(int(f))
				}
				return ""
			},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render hour %d: %w", h.Hour, err)
	}
	return nil
}
