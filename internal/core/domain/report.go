package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReportWindow is used when a report range is not given.
const DefaultReportWindow = 30 * 24 * time.Hour

// MaxReportWindow bounds the length of any report range.
const MaxReportWindow = 366 * 24 * time.Hour

// DateRange is an inclusive reporting window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DefaultDateRange covers the last 30 days up to now.
func DefaultDateRange(now time.Time) DateRange {
	return DateRange{Start: now.Add(-DefaultReportWindow), End: now}
}

// Previous returns the window of equal length immediately preceding r.
func (r DateRange) Previous() DateRange {
	length := r.End.Sub(r.Start)
	return DateRange{Start: r.Start.Add(-length), End: r.Start}
}

// OrderAggregate summarises orders created inside a range.
type OrderAggregate struct {
	TotalOrders     int64
	CompletedOrders int64
	PaidOrders      int64
	CompletedSales  decimal.Decimal
}

// DailySales is one bucket of the sales chart.
type DailySales struct {
	Date   string          `json:"date"` // YYYY-MM-DD
	Amount decimal.Decimal `json:"amount"`
	Orders int64           `json:"orders"`
}

// TopProduct ranks products by completed order count.
type TopProduct struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Sales     int64           `json:"sales"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Growth holds period-over-period percentage changes.
type Growth struct {
	Sales         float64 `json:"sales_growth"`
	Orders        float64 `json:"orders_growth"`
	Users         float64 `json:"users_growth"`
	AvgOrderValue float64 `json:"avg_order_growth"`
}

// SalesReport is the admin reports payload.
type SalesReport struct {
	Range                DateRange       `json:"range"`
	TotalSales           decimal.Decimal `json:"total_sales"`
	TotalOrders          int64           `json:"total_orders"`
	CompletedOrders      int64           `json:"completed_orders"`
	NewUsers             int64           `json:"new_users"`
	AvgOrderValue        decimal.Decimal `json:"avg_order_value"`
	Growth               Growth          `json:"growth"`
	SalesChart           []DailySales    `json:"sales_chart"`
	MaxSales             decimal.Decimal `json:"max_sales"`
	TopProducts          []TopProduct    `json:"top_products"`
	ConversionRate       float64         `json:"conversion_rate"`
	CompletionRate       float64         `json:"completion_rate"`
	CustomerSatisfaction *float64        `json:"customer_satisfaction"`
}

// DashboardStats is the admin overview payload.
type DashboardStats struct {
	TotalUsers    int64           `json:"total_users"`
	TotalProducts int64           `json:"total_products"`
	TotalOrders   int64           `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	PendingOrders int64           `json:"pending_orders"`
	RecentOrders  []Order         `json:"recent_orders"`
}

// UserStats summarises one user's orders.
type UserStats struct {
	TotalOrders     int64           `json:"total_orders"`
	CompletedOrders int64           `json:"completed_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
}
