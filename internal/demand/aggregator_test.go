package demand

import (
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesFrame(t *testing.T, records ...[]string) dataframe.DataFrame {
	t.Helper()
	df, err := dataset.FromRecords(records)
	require.NoError(t, err)
	return df
}

func sampleSales(t *testing.T) dataframe.DataFrame {
	return salesFrame(t,
		[]string{"order_id", "order_date", "product_name", "category", "quantity"},
		[]string{"1", "2024-01-05 10:15:00", "Milk", "Dairy", "3"},
		[]string{"2", "2024-01-05 18:40:00", "Milk", "Dairy", "2"},
		[]string{"3", "2024-01-05 11:00:00", "Bread", "Bakery", "1"},
		[]string{"4", "2024-01-20 09:00:00", "Milk", "Dairy", "4"},
		[]string{"5", "2024-02-02 09:00:00", "Bread", "Bakery", "6"},
		[]string{"6", "NaN", "Milk", "Dairy", "7"},
		[]string{"7", "2024-02-03 09:00:00", "Milk", "Dairy", ""},
	)
}

func TestDailyDemand(t *testing.T) {
	daily, err := DailyDemand(sampleSales(t))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"order_date", "product_name", "quantity"},
		{"2024-01-05", "Bread", "1"},
		{"2024-01-05", "Milk", "5"},
		{"2024-01-20", "Milk", "4"},
		{"2024-02-02", "Bread", "6"},
	}, dataset.Rows(daily))
}

func TestDailyDemand_SingleSale(t *testing.T) {
	sales := salesFrame(t,
		[]string{"order_date", "product_name", "category", "quantity"},
		[]string{"2024-01-05 10:15:00", "Milk", "Dairy", "3"},
	)

	daily, err := DailyDemand(sales)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"order_date", "product_name", "quantity"},
		{"2024-01-05", "Milk", "3"},
	}, dataset.Rows(daily))
}

func TestMonthlyDemand(t *testing.T) {
	monthly, err := MonthlyDemand(sampleSales(t))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"month", "product_name", "quantity"},
		{"2024-01", "Bread", "1"},
		{"2024-01", "Milk", "9"},
		{"2024-02", "Bread", "6"},
	}, dataset.Rows(monthly))
}

func TestCategorySeries(t *testing.T) {
	points, err := CategorySeries(sampleSales(t))
	require.NoError(t, err)

	assert.Equal(t, []model.DemandPoint{
		{Category: "Bakery", Timestamp: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), Value: 1},
		{Category: "Bakery", Timestamp: time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), Value: 6},
		{Category: "Dairy", Timestamp: time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), Value: 9},
	}, points)

	assert.Equal(t, []string{"Bakery", "Dairy"}, Categories(points))
	assert.Len(t, SeriesFor(points, "Bakery"), 2)
	assert.Empty(t, SeriesFor(points, "Frozen"))
}

func TestAggregate_MissingColumns(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
	}{
		{
			name:    "no category",
			records: [][]string{{"order_date", "product_name", "quantity"}, {"2024-01-05", "Milk", "1"}},
		},
		{
			name:    "no quantity",
			records: [][]string{{"order_date", "product_name", "category"}, {"2024-01-05", "Milk", "Dairy"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAggregator().Aggregate(salesFrame(t, tt.records...))
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrMissingColumn))
		})
	}
}

func TestAggregate_WithoutProductNameSkipsProductTables(t *testing.T) {
	res, err := NewAggregator().Aggregate(salesFrame(t,
		[]string{"order_date", "category", "quantity"},
		[]string{"2024-01-05", "Dairy", "1"},
		[]string{"2024-01-20", "Dairy", "2"},
	))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Daily.Nrow())
	assert.Equal(t, []string{"order_date", "product_name", "quantity"}, res.Daily.Names())
	assert.Equal(t, 0, res.Monthly.Nrow())
	assert.Equal(t, []string{"month", "product_name", "quantity"}, res.Monthly.Names())

	require.Len(t, res.Series, 1)
	assert.InDelta(t, 3, res.Series[0].Value, 0)
}

func TestAggregate(t *testing.T) {
	res, err := NewAggregator().Aggregate(sampleSales(t))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Daily.Nrow())
	assert.Equal(t, 3, res.Monthly.Nrow())
	assert.Len(t, res.Series, 3)
}

func TestMonthEnd(t *testing.T) {
	tests := map[string]struct {
		in   time.Time
		want time.Time
	}{
		"leap february": {time.Date(2024, 2, 3, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		"december":      {time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
		"thirty days":   {time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 4, 30, 0, 0, 0, 0, time.UTC)},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthEnd(tt.in))
		})
	}
}
