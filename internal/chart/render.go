// Package chart renders per-category forecast plots.
package chart

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/Veraticus/demandflow/internal/model"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Plot dimensions.
const (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
)

var (
	observedColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	forecastColor = color.RGBA{R: 0, G: 114, B: 178, A: 255}
	bandColor     = color.RGBA{R: 0, G: 114, B: 178, A: 60}
)

// Axis labels of every forecast plot.
const (
	XLabel = "Month"
	YLabel = "Quantity Sold"
)

// Title is the heading of a category's forecast plot.
func Title(category string) string {
	return "Forecasted Demand for Category: " + category
}

// Render draws the observed history, the point forecast and the uncertainty band as PNG.
func Render(category string, history []model.DemandPoint, rows []model.ForecastRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no forecast rows for %s", category)
	}

	p := plot.New()
	p.Title.Text = Title(category)
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Add(plotter.NewGrid())

	band := make(plotter.XYs, 0, 2*len(rows))
	line := make(plotter.XYs, len(rows))
	for i, r := range rows {
		x := float64(r.Timestamp.Unix())
		line[i] = plotter.XY{X: x, Y: r.PointEstimate}
		band = append(band, plotter.XY{X: x, Y: r.UpperBound})
	}
	for i := len(rows) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: float64(rows[i].Timestamp.Unix()), Y: rows[i].LowerBound})
	}

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return nil, fmt.Errorf("build interval band: %w", err)
	}
	poly.Color = bandColor
	poly.LineStyle.Width = 0

	fc, err := plotter.NewLine(line)
	if err != nil {
		return nil, fmt.Errorf("build forecast line: %w", err)
	}
	fc.Color = forecastColor
	fc.Width = vg.Points(1.5)

	p.Add(poly, fc)
	p.Legend.Add("forecast", fc)
	p.Legend.Add("interval", poly)

	if len(history) > 0 {
		observed := make(plotter.XYs, len(history))
		for i, h := range history {
			observed[i] = plotter.XY{X: float64(h.Timestamp.Unix()), Y: h.Value}
		}
		sc, err := plotter.NewScatter(observed)
		if err != nil {
			return nil, fmt.Errorf("build observations: %w", err)
		}
		sc.GlyphStyle.Color = observedColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("observed", sc)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return nil, fmt.Errorf("encode plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode plot: %w", err)
	}
	return buf.Bytes(), nil
}
