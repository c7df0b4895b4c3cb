package chart

import (
	"bytes"
	"image/png"
	"regexp"
	"testing"
	"time"

	"github.com/Veraticus/demandflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestSlug(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{label: "Dairy", want: "Dairy"},
		{label: "Dairy & Breakfast", want: "Dairy_Breakfast-" + labelHash("Dairy & Breakfast")},
		{label: "Fruits Vegetables", want: "Fruits_Vegetables"},
		{label: "Pet Care", want: "Pet_Care"},
		{label: "Pet_Care", want: "Pet_Care-" + labelHash("Pet_Care")},
		{label: "  Baby  Care ", want: "Baby_Care-" + labelHash("  Baby  Care ")},
		{label: "???", want: "category-" + labelHash("???")},
		{label: "", want: "category-" + labelHash("")},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := Slug(tt.label)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, safeName, got)
			assert.Equal(t, got, Slug(tt.label), "slug must be deterministic")
		})
	}
}

func TestSlug_CollisionFree(t *testing.T) {
	labels := []string{
		"Dairy & Breakfast", "Dairy Breakfast", "Dairy_Breakfast", "Dairy/Breakfast",
		"Dairy  Breakfast", "dairy breakfast", "Pet Care", "Pet-Care", "Pet Care ",
		"Snacks & Munchies", "Snacks Munchies", "Cold Drinks & Juices", "", "&", "/",
	}

	seen := map[string]string{}
	for _, l := range labels {
		s := Slug(l)
		if prev, ok := seen[s]; ok {
			t.Fatalf("labels %q and %q share slug %q", prev, l, s)
		}
		seen[s] = l
	}
}

func TestPlotFileName(t *testing.T) {
	assert.Equal(t, "forecast_plot_Dairy.png", PlotFileName("Dairy"))
}

func TestRender(t *testing.T) {
	var history []model.DemandPoint
	var rows []model.ForecastRow
	for i := 0; i < 12; i++ {
		ts := time.Date(2023, time.January+time.Month(i)+1, 0, 0, 0, 0, 0, time.UTC)
		v := float64(10 + i)
		if i < 6 {
			history = append(history, model.DemandPoint{Category: "Dairy", Timestamp: ts, Value: v})
		}
		rows = append(rows, model.ForecastRow{
			Category: "Dairy", Timestamp: ts, PointEstimate: v, LowerBound: v - 2, UpperBound: v + 2,
		})
	}

	img, err := Render("Dairy", history, rows)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, cfg.Height)
}

func TestRender_NoRows(t *testing.T) {
	_, err := Render("Dairy", nil, nil)
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Forecasted Demand for Category: Fruits & Vegetables", Title("Fruits & Vegetables"))
	assert.Equal(t, "Month", XLabel)
	assert.Equal(t, "Quantity Sold", YLabel)
}
