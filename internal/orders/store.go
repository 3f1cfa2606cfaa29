package orders

import (
	"context"
	"time"
)

// Tx is the view of the store available inside one placement transaction.
type Tx interface {
	// ReadVariantStock returns ErrNotFound when the variant does not exist.
	ReadVariantStock(ctx context.Context, variantID int64) (int, error)
	DecrementVariantStock(ctx context.Context, variantID int64, qty int) error
	// InsertOrder assigns o.ID, o.CreatedAt and o.UpdatedAt.
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, orderID string, it *LineItem) error
}

type Store interface {
	// InTx runs fn in a single transaction. Any error from fn rolls back
	// every effect of the attempt; the connection is released either way.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ReadOrder(ctx context.Context, orderID string) (*Order, error)
	ReadOrderItems(ctx context.Context, orderID string) ([]LineItem, error)
	ReadOrdersByUser(ctx context.Context, userID int64) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status Status) (int64, error)

	ReportStore
}

// ReportStore backs the staff and admin screens. Days are UTC calendar days.
type ReportStore interface {
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	RecentOrders(ctx context.Context, limit int) ([]Order, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	DayTotals(ctx context.Context, day time.Time) (orders, revenue int64, err error)
	RevenueByDay(ctx context.Context, since time.Time) ([]DayRevenue, error)
	TopVariants(ctx context.Context, since time.Time, limit int) ([]TopVariant, error)
}
