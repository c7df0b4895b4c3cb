package export

import (
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TimestampLayout renders forecast timestamps.
const TimestampLayout = "2006-01-02"

// ForecastFrame lays rows out as the combined forecast table.
func ForecastFrame(rows []model.ForecastRow) dataframe.DataFrame {
	categories := make([]string, len(rows))
	stamps := make([]string, len(rows))
	points := make([]float64, len(rows))
	lower := make([]float64, len(rows))
	upper := make([]float64, len(rows))
	for i, r := range rows {
		categories[i] = r.Category
		stamps[i] = r.Timestamp.Format(TimestampLayout)
		points[i] = r.PointEstimate
		lower[i] = r.LowerBound
		upper[i] = r.UpperBound
	}

	cols := model.ForecastColumns
	return dataframe.New(
		series.New(categories, series.String, cols[0]),
		series.New(stamps, series.String, cols[1]),
		series.New(points, series.Float, cols[2]),
		series.New(lower, series.Float, cols[3]),
		series.New(upper, series.Float, cols[4]),
	)
}
