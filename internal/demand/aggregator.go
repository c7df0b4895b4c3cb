// Package demand aggregates merged sales into daily, monthly and per-category series.
package demand

import (
	"sort"
	"time"

	"github.com/Veraticus/demandflow/internal/cleaning"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// MonthLayout renders calendar months.
const MonthLayout = "2006-01"

// Requirements of each aggregation over the sales table. The product tables are
// reports and are left empty without their columns; the category series feeds the
// forecast and fails the run.
var (
	DailyRequirement = model.Requirement{
		Step:    "daily demand",
		Columns: []string{model.ColOrderDate, model.ColProductName, model.ColQuantity},
		Policy:  model.SkipStep,
	}
	MonthlyRequirement = model.Requirement{
		Step:    "monthly demand",
		Columns: []string{model.ColOrderDate, model.ColProductName, model.ColQuantity},
		Policy:  model.SkipStep,
	}
	CategoryRequirement = model.Requirement{
		Step:    "category series",
		Columns: []string{model.ColOrderDate, model.ColCategory, model.ColQuantity},
		Policy:  model.Fail,
	}
)

// Result holds every aggregation of one sales table.
type Result struct {
	Daily   dataframe.DataFrame
	Monthly dataframe.DataFrame
	Series  []model.DemandPoint
}

// Aggregator computes demand aggregations.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate runs every aggregation over sales.
func (a *Aggregator) Aggregate(sales dataframe.DataFrame) (*Result, error) {
	daily, err := DailyDemand(sales)
	if err != nil {
		return nil, err
	}
	monthly, err := MonthlyDemand(sales)
	if err != nil {
		return nil, err
	}
	points, err := CategorySeries(sales)
	if err != nil {
		return nil, err
	}

	common.LogInfo("Aggregated demand", common.Fields{
		"daily_rows":   daily.Nrow(),
		"monthly_rows": monthly.Nrow(),
		"categories":   len(Categories(points)),
	})
	return &Result{Daily: daily, Monthly: monthly, Series: points}, nil
}

// DailyDemand sums quantity per (calendar date, product_name), sorted by date then product.
func DailyDemand(sales dataframe.DataFrame) (dataframe.DataFrame, error) {
	groups, ok, err := sumBy(sales, DailyRequirement, model.ColProductName, func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	})
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if !ok {
		return dataset.Empty(model.ColOrderDate, model.ColProductName, model.ColQuantity), nil
	}
	return groups.frame(model.ColOrderDate, model.ColProductName, cleaning.DateLayout, isInt(sales)), nil
}

// MonthlyDemand sums quantity per (YYYY-MM, product_name), sorted by month then product.
func MonthlyDemand(sales dataframe.DataFrame) (dataframe.DataFrame, error) {
	groups, ok, err := sumBy(sales, MonthlyRequirement, model.ColProductName, monthStart)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if !ok {
		return dataset.Empty(model.ColMonth, model.ColProductName, model.ColQuantity), nil
	}
	return groups.frame(model.ColMonth, model.ColProductName, MonthLayout, isInt(sales)), nil
}

// CategorySeries sums quantity per (category, month) labelled by the last day of the month,
// sorted by category then timestamp.
func CategorySeries(sales dataframe.DataFrame) ([]model.DemandPoint, error) {
	groups, _, err := sumBy(sales, CategoryRequirement, model.ColCategory, MonthEnd)
	if err != nil {
		return nil, err
	}

	points := make([]model.DemandPoint, len(groups))
	for i, g := range groups {
		points[i] = model.DemandPoint{Category: g.label, Timestamp: g.period, Value: g.total}
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Category != points[j].Category {
			return points[i].Category < points[j].Category
		}
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// Categories returns the distinct categories of points in sorted order.
func Categories(points []model.DemandPoint) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range points {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// SeriesFor returns the points of one category, preserving order.
func SeriesFor(points []model.DemandPoint, category string) []model.DemandPoint {
	var out []model.DemandPoint
	for _, p := range points {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// MonthEnd returns the last calendar day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type group struct {
	period time.Time
	label  string
	total  float64
}

type groupKey struct {
	period time.Time
	label  string
}

type groups []group

func (gs groups) frame(periodCol, labelCol, layout string, intQuantity bool) dataframe.DataFrame {
	periods := make([]string, len(gs))
	labels := make([]string, len(gs))
	totals := make([]float64, len(gs))
	for i, g := range gs {
		periods[i] = g.period.Format(layout)
		labels[i] = g.label
		totals[i] = g.total
	}

	quantity := series.New(totals, series.Float, model.ColQuantity)
	if intQuantity {
		ints := make([]int, len(totals))
		for i, v := range totals {
			ints[i] = int(v)
		}
		quantity = series.New(ints, series.Int, model.ColQuantity)
	}

	return dataframe.New(
		series.New(periods, series.String, periodCol),
		series.New(labels, series.String, labelCol),
		quantity,
	)
}

// sumBy groups rows by (bucket(date), label) and sums quantity. Rows missing any of the
// three values are left out. Groups come back sorted by period then label. The bool is
// false when req's columns are absent and its policy skips the step.
func sumBy(sales dataframe.DataFrame, req model.Requirement, labelCol string, bucket func(time.Time) time.Time) (groups, bool, error) {
	if ok, err := dataset.Require(sales, req); !ok {
		return nil, false, err
	}

	dates, ok := cleaning.ParseDateColumn(sales.Col(model.ColOrderDate))
	labels := sales.Col(labelCol)
	quantities := sales.Col(model.ColQuantity).Float()

	totals := map[groupKey]float64{}
	var order []groupKey
	for i := range dates {
		if !ok[i] || labels.Elem(i).IsNA() || isNaN(quantities[i]) {
			continue
		}
		label, _ := dataset.KeyString(labels.Elem(i))
		k := groupKey{period: bucket(dates[i]), label: label}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += quantities[i]
	}

	out := make(groups, len(order))
	for i, k := range order {
		out[i] = group{period: k.period, label: k.label, total: totals[k]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].period.Equal(out[j].period) {
			return out[i].period.Before(out[j].period)
		}
		return out[i].label < out[j].label
	})
	return out, true, nil
}

func isInt(sales dataframe.DataFrame) bool {
	return sales.Col(model.ColQuantity).Type() == series.Int
}

func isNaN(f float64) bool {
	return f != f
}
