// Package model defines the datasets, schemas and result rows shared by the pipeline stages.
package model

// DatasetName identifies one of the six source tables.
type DatasetName string

const (
	// Orders holds one row per customer order.
	Orders DatasetName = "orders"
	// OrderItems holds the product lines of each order.
	OrderItems DatasetName = "order_items"
	// Products is the product catalogue.
	Products DatasetName = "products"
	// Customers is the customer directory.
	Customers DatasetName = "customers"
	// Delivery holds per-order delivery performance records.
	Delivery DatasetName = "delivery_performance"
	// Feedback holds per-order customer feedback.
	Feedback DatasetName = "customer_feedback"
)

// AllDatasets lists the sources in load order.
var AllDatasets = []DatasetName{Orders, OrderItems, Products, Customers, Delivery, Feedback}

// DefaultFileNames maps each dataset to its conventional file name.
var DefaultFileNames = map[DatasetName]string{
	Orders:     "blinkit_orders.csv",
	OrderItems: "blinkit_order_items.csv",
	Products:   "blinkit_products.csv",
	Customers:  "blinkit_customers.csv",
	Delivery:   "blinkit_delivery_performance.csv",
	Feedback:   "blinkit_customer_feedback.csv",
}

// Column names used by the pipeline.
const (
	ColOrderID      = "order_id"
	ColCustomerID   = "customer_id"
	ColOrderDate    = "order_date"
	ColProductID    = "product_id"
	ColProductName  = "product_name"
	ColQuantity     = "quantity"
	ColCategory     = "category"
	ColPrice        = "price"
	ColAge          = "age"
	ColCity         = "city"
	ColDeliveryTime = "delivery_time"
	ColRating       = "rating"
	ColMonth        = "month"
)

// Exported table names.
const (
	TableSales            = "merged_sales_data"
	TableCustomerOrders   = "merged_customer_orders"
	TableDeliveryAnalysis = "merged_delivery_analysis"
	TableFeedbackData     = "merged_feedback_data"
	TableForecast         = "combined_category_forecast"
	TableDailyDemand      = "daily_demand"
	TableMonthlyDemand    = "monthly_demand"
)
