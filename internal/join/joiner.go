// Package join combines the cleaned tables into the four merged analysis tables.
package join

import (
	"context"
	"fmt"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
)

// Suffixes added to overlapping non-key columns.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// Tables are the merged outputs of the joiner.
type Tables struct {
	Sales            dataframe.DataFrame
	CustomerOrders   dataframe.DataFrame
	DeliveryAnalysis dataframe.DataFrame
	FeedbackData     dataframe.DataFrame
}

// Named returns the tables keyed by their export name, in export order.
func (t *Tables) Named() []dataset.Table {
	return []dataset.Table{
		{Name: model.TableSales, Frame: t.Sales},
		{Name: model.TableCustomerOrders, Frame: t.CustomerOrders},
		{Name: model.TableDeliveryAnalysis, Frame: t.DeliveryAnalysis},
		{Name: model.TableFeedbackData, Frame: t.FeedbackData},
	}
}

// Joiner derives the merged tables from cleaned datasets.
type Joiner struct{}

// NewJoiner creates a joiner.
func NewJoiner() *Joiner {
	return &Joiner{}
}

// Join builds the four merged tables. Each join uses the right dataset's schema key;
// a join whose key is absent on either side falls back to the left table unchanged.
func (j *Joiner) Join(ctx context.Context, ds dataset.Datasets) (*Tables, error) {
	orders, ok := ds[model.Orders]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrMissingSource, model.Orders)
	}

	var err error
	t := &Tables{}

	if t.Sales, err = j.sales(ds, orders); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if t.CustomerOrders, _, err = j.merge(orders, ds, model.Customers); err != nil {
		return nil, err
	}
	if t.DeliveryAnalysis, _, err = j.merge(orders, ds, model.Delivery); err != nil {
		return nil, err
	}
	if t.FeedbackData, _, err = j.merge(orders, ds, model.Feedback); err != nil {
		return nil, err
	}

	for _, nt := range t.Named() {
		rows, cols := nt.Frame.Dims()
		common.LogInfo("Merged table", common.Fields{"table": nt.Name, "rows": rows, "columns": cols})
	}
	return t, nil
}

func (j *Joiner) sales(ds dataset.Datasets, orders dataframe.DataFrame) (dataframe.DataFrame, error) {
	sales, joined, err := j.merge(orders, ds, model.OrderItems)
	if err != nil || !joined {
		return sales, err
	}
	sales, _, err = j.merge(sales, ds, model.Products)
	return sales, err
}

// merge inner-joins left with ds[name] on the dataset's join key. The bool reports
// whether the join happened; otherwise left is returned unchanged.
func (j *Joiner) merge(left dataframe.DataFrame, ds dataset.Datasets, name model.DatasetName) (dataframe.DataFrame, bool, error) {
	schema := model.SchemaFor(name)
	right, ok := ds[name]
	if !ok || right.Ncol() == 0 || schema.JoinKey() == "" {
		fallback(name, schema.JoinKey())
		return left, false, nil
	}

	req := schema.JoinRequirement()
	for _, df := range []dataframe.DataFrame{left, right} {
		if ok, err := dataset.Require(df, req); !ok {
			return left, false, err
		}
	}

	out, err := InnerJoin(left, right, schema.JoinKey())
	if err != nil {
		return dataframe.DataFrame{}, false, fmt.Errorf("join with %s: %w", name, err)
	}
	return out, true, nil
}

func fallback(name model.DatasetName, key string) {
	common.LogInfo("Dataset not joined, keeping the left table unchanged", common.Fields{
		"dataset": name,
		"key":     key,
	})
}
