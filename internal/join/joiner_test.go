package join

import (
	"context"
	"testing"

	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, records ...[]string) dataframe.DataFrame {
	t.Helper()
	df, err := dataset.FromRecords(records)
	require.NoError(t, err)
	return df
}

func TestInnerJoin(t *testing.T) {
	orders := frame(t,
		[]string{"order_id", "customer_id", "delivery_status"},
		[]string{"1", "10", "On Time"},
		[]string{"2", "11", "Late"},
		[]string{"3", "12", "On Time"},
	)
	delivery := frame(t,
		[]string{"order_id", "delivery_time", "delivery_status"},
		[]string{"2", "30", "Late"},
		[]string{"1", "12", "On Time"},
		[]string{"2", "31", "Late"},
		[]string{"9", "5", "On Time"},
	)

	out, err := InnerJoin(orders, delivery, "order_id")
	require.NoError(t, err)

	assert.Equal(t, []string{"order_id", "customer_id", "delivery_status_x", "delivery_time", "delivery_status_y"}, out.Names())
	assert.Equal(t, [][]string{
		{"order_id", "customer_id", "delivery_status_x", "delivery_time", "delivery_status_y"},
		{"1", "10", "On Time", "12", "On Time"},
		{"2", "11", "Late", "30", "Late"},
		{"2", "11", "Late", "31", "Late"},
	}, dataset.Rows(out))
}

func TestInnerJoin_MixedKeyTypes(t *testing.T) {
	left := frame(t, []string{"product_id", "qty"}, []string{"100", "2"})
	right := frame(t, []string{"product_id", "name"}, []string{"100.0", "Milk"}, []string{"101.5", "Other"})

	out, err := InnerJoin(left, right, "product_id")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Nrow())
	assert.Equal(t, "Milk", out.Col("name").Elem(0).String())
}

func TestInnerJoin_NoMatches(t *testing.T) {
	left := frame(t, []string{"order_id", "a"}, []string{"1", "x"})
	right := frame(t, []string{"order_id", "b"}, []string{"2", "y"})

	out, err := InnerJoin(left, right, "order_id")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Nrow())
	assert.Equal(t, []string{"order_id", "a", "b"}, out.Names())
}

func TestInnerJoin_MissingKey(t *testing.T) {
	left := frame(t, []string{"order_id"}, []string{"1"})
	right := frame(t, []string{"other"}, []string{"1"})

	_, err := InnerJoin(left, right, "order_id")
	assert.Error(t, err)
}

func TestJoiner_Join(t *testing.T) {
	ds := dataset.Datasets{
		model.Orders: frame(t,
			[]string{"order_id", "customer_id", "order_date"},
			[]string{"1", "10", "2024-01-05"},
			[]string{"2", "11", "2024-01-06"},
		),
		model.OrderItems: frame(t,
			[]string{"order_id", "product_id", "quantity"},
			[]string{"1", "100", "3"},
			[]string{"1", "101", "1"},
			[]string{"7", "100", "9"},
		),
		model.Products: frame(t,
			[]string{"product_id", "product_name", "category"},
			[]string{"100", "Milk", "Dairy"},
		),
		model.Customers: frame(t,
			[]string{"customer_id", "city"},
			[]string{"10", "Delhi"},
		),
		model.Delivery: frame(t,
			[]string{"delivery_time"},
			[]string{"12"},
		),
		model.Feedback: frame(t,
			[]string{"order_id", "rating"},
			[]string{"2", "5"},
		),
	}

	tables, err := NewJoiner().Join(context.Background(), ds)
	require.NoError(t, err)

	// Only order 1 / product 100 survives both inner joins.
	assert.Equal(t, [][]string{
		{"order_id", "customer_id", "order_date", "product_id", "quantity", "product_name", "category"},
		{"1", "10", "2024-01-05", "100", "3", "Milk", "Dairy"},
	}, dataset.Rows(tables.Sales))

	assert.Equal(t, 1, tables.CustomerOrders.Nrow())
	assert.Equal(t, "Delhi", tables.CustomerOrders.Col("city").Elem(0).String())

	// Delivery lacks order_id: orders pass through unchanged.
	assert.Equal(t, dataset.Rows(ds[model.Orders]), dataset.Rows(tables.DeliveryAnalysis))

	assert.Equal(t, []string{"2"}, tables.FeedbackData.Col("order_id").Records())
}

func TestJoiner_SalesFallsBackWithoutOrderID(t *testing.T) {
	ds := dataset.Datasets{
		model.Orders:     frame(t, []string{"order_id", "customer_id"}, []string{"1", "10"}),
		model.OrderItems: frame(t, []string{"product_id", "quantity"}, []string{"100", "3"}),
	}

	tables, err := NewJoiner().Join(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, dataset.Rows(ds[model.Orders]), dataset.Rows(tables.Sales))
	assert.Equal(t, dataset.Rows(ds[model.Orders]), dataset.Rows(tables.CustomerOrders))
}

func TestJoiner_MissingLeftKeyFallsBack(t *testing.T) {
	ds := dataset.Datasets{
		model.Orders:    frame(t, []string{"order_id", "order_total"}, []string{"1", "50"}),
		model.Customers: frame(t, []string{"customer_id", "city"}, []string{"10", "Pune"}),
		model.Feedback:  frame(t, []string{"order_id", "rating"}, []string{"1", "5"}),
	}

	tables, err := NewJoiner().Join(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, dataset.Rows(ds[model.Orders]), dataset.Rows(tables.CustomerOrders))
	assert.Equal(t, []string{"order_id", "order_total", "rating"}, tables.FeedbackData.Names())
}

// Every sales row pairs an order id with an item carrying the same id.
func TestJoiner_SalesContainment(t *testing.T) {
	orders := frame(t,
		[]string{"order_id", "customer_id"},
		[]string{"1", "10"}, []string{"2", "11"}, []string{"3", "12"},
	)
	items := frame(t,
		[]string{"order_id", "product_id", "quantity"},
		[]string{"1", "100", "1"}, []string{"3", "101", "2"}, []string{"3", "102", "3"}, []string{"4", "100", "4"},
	)

	tables, err := NewJoiner().Join(context.Background(), dataset.Datasets{model.Orders: orders, model.OrderItems: items})
	require.NoError(t, err)

	orderIDs := map[string]bool{}
	for _, id := range orders.Col("order_id").Records() {
		orderIDs[id] = true
	}
	itemIDs := map[string]bool{}
	for _, id := range items.Col("order_id").Records() {
		itemIDs[id] = true
	}

	require.Equal(t, 3, tables.Sales.Nrow())
	for _, id := range tables.Sales.Col("order_id").Records() {
		assert.True(t, orderIDs[id], id)
		assert.True(t, itemIDs[id], id)
	}
}
