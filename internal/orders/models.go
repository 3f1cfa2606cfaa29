package orders

import "time"

// Amounts are integer minor currency units.

type Order struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	Status          Status     `json:"status"`
	Total           int64      `json:"total"`
	ShippingAddress string     `json:"shipping_address"`
	ShippingPhone   string     `json:"shipping_phone"`
	Note            *string    `json:"note"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Items           []LineItem `json:"items,omitempty"`
}

// LineItem carries a snapshot of the catalog at order time; later catalog
// edits never change it.
type LineItem struct {
	ID           int64  `json:"id"`
	OrderID      string `json:"order_id"`
	ProductID    int64  `json:"product_id"`
	VariantID    int64  `json:"variant_id"`
	ProductName  string `json:"product_name"`
	VariantLabel string `json:"variant_label"`
	Price        int64  `json:"price"`
	Quantity     int    `json:"quantity"`
}

type OrderFilter struct {
	Status string
	Search string
	From   *time.Time // inclusive calendar day
	To     *time.Time // inclusive calendar day
}

type StaffSummary struct {
	PendingOrders    int64 `json:"pending_orders"`
	TodayOrders      int64 `json:"today_orders"`
	ProcessingOrders int64 `json:"processing_orders"`
}

type StaffStats struct {
	Summary StaffSummary `json:"summary"`
	Recent  []Order      `json:"recent"`
}

type DayRevenue struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Total int64  `json:"total"`
	Count int64  `json:"count"`
}

type AdminSummary struct {
	TodayRevenue  int64 `json:"today_revenue"`
	TodayOrders   int64 `json:"today_orders"`
	PendingOrders int64 `json:"pending_orders"`
}

type TopVariant struct {
	ProductID    int64  `json:"product_id"`
	VariantID    int64  `json:"variant_id"`
	ProductName  string `json:"product_name"`
	VariantLabel string `json:"variant_label"`
	Sold         int64  `json:"sold"`
	Revenue      int64  `json:"revenue"`
}

type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

type AdminStats struct {
	RevenueByDay []DayRevenue  `json:"revenue_by_day"`
	Summary      AdminSummary  `json:"summary"`
	TopProducts  []TopVariant  `json:"top_products"`
	StatusCounts []StatusCount `json:"status_counts"`
}
