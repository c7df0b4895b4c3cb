// Package testutil provides fixture builders shared by the package tests.
package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/demandflow/internal/model"
)

// Fixture holds raw CSV rows, header first, for each dataset.
type Fixture map[model.DatasetName][][]string

// WriteCSV writes rows to dir/name and returns the full path.
func WriteCSV(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path) // #nosec G304 -- test fixture path
	if err != nil {
		t.Fatalf("failed to create fixture %s: %v", name, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// WriteFixture writes every dataset of fx into dir under its default file name.
func WriteFixture(t *testing.T, dir string, fx Fixture) {
	t.Helper()
	for name, rows := range fx {
		WriteCSV(t, dir, model.DefaultFileNames[name], rows)
	}
}

// SingleSaleFixture is one order of three units of Milk on 2024-01-05.
func SingleSaleFixture() Fixture {
	return Fixture{
		model.Orders: {
			{"order_id", "customer_id", "order_date", "delivery_partner_id", "delivery_status"},
			{"1", "10", "2024-01-05 10:15:00", "7", "On Time"},
		},
		model.OrderItems: {
			{"order_id", "product_id", "quantity", "unit_price"},
			{"1", "100", "3", "25.5"},
		},
		model.Products: {
			{"product_id", "product_name", "category", "brand", "price"},
			{"100", "Milk", "dairy", "Amul", "25.5"},
		},
		model.Customers: {
			{"customer_id", "customer_name", "age", "city"},
			{"10", "Asha", "31", " mumbai "},
		},
		model.Delivery: {
			{"order_id", "delivery_partner_id", "delivery_time", "delivery_status"},
			{"1", "7", "12", "On Time"},
		},
		model.Feedback: {
			{"feedback_id", "order_id", "customer_id", "rating", "feedback_text"},
			{"500", "1", "10", "4", "Quick delivery"},
		},
	}
}

// CategoryMonthsFixture builds orders for each category spread over the given number of months,
// starting January 2023, with one order per month whose quantity follows a simple ramp.
func CategoryMonthsFixture(months map[string]int) Fixture {
	fx := Fixture{
		model.Orders:     {{"order_id", "customer_id", "order_date"}},
		model.OrderItems: {{"order_id", "product_id", "quantity"}},
		model.Products:   {{"product_id", "product_name", "category", "price"}},
		model.Customers:  {{"customer_id", "age", "city"}, {"1", "30", "Delhi"}},
		model.Delivery:   {{"order_id", "delivery_time"}},
		model.Feedback:   {{"order_id", "rating"}},
	}

	start := time.Date(2023, time.January, 10, 0, 0, 0, 0, time.UTC)
	orderID := 1
	productID := 100
	for category, n := range months {
		pid := fmt.Sprint(productID)
		fx[model.Products] = append(fx[model.Products], []string{pid, category + " item", category, "10"})
		for m := 0; m < n; m++ {
			oid := fmt.Sprint(orderID)
			date := start.AddDate(0, m, 0).Format("2006-01-02")
			fx[model.Orders] = append(fx[model.Orders], []string{oid, "1", date})
			fx[model.OrderItems] = append(fx[model.OrderItems], []string{oid, pid, fmt.Sprint(5 + m)})
			fx[model.Delivery] = append(fx[model.Delivery], []string{oid, "15"})
			fx[model.Feedback] = append(fx[model.Feedback], []string{oid, "5"})
			orderID++
		}
		productID++
	}
	return fx
}
