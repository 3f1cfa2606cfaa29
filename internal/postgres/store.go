package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements orders.Store on Postgres.
type Store struct{ DB *pgxpool.Pool }

var _ orders.Store = (*Store)(nil)

const orderColumns = `id::text, user_id, status, total, shipping_address, shipping_phone, note, created_at, updated_at`

// InTx acquires one pooled connection for the whole transaction. Rollback
// is deferred unconditionally and is a no-op after a successful commit.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct{ tx pgx.Tx }

// ReadVariantStock locks the variant row until the transaction ends, so a
// concurrent placement for the same variant waits and then sees the
// decremented stock.
func (t *pgTx) ReadVariantStock(ctx context.Context, variantID int64) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id=$1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, orders.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (t *pgTx) DecrementVariantStock(ctx context.Context, variantID int64, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, variantID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrInsufficientStock
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	id := uuid.NewString()
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, total, shipping_address, shipping_phone, note)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		id, o.UserID, string(o.Status), o.Total, o.ShippingAddress, o.ShippingPhone, o.Note,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func (t *pgTx) InsertOrderItem(ctx context.Context, orderID string, it *orders.LineItem) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, variant_id, product_name, variant_label, price, quantity)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		orderID, it.ProductID, it.VariantID, it.ProductName, it.VariantLabel, it.Price, it.Quantity,
	).Scan(&it.ID)
	if err != nil {
		return err
	}
	it.OrderID = orderID
	return nil
}

func (s *Store) ReadOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1::uuid`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ReadOrderItems(ctx context.Context, orderID string) ([]orders.LineItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id::text, product_id, variant_id, product_name, variant_label, price, quantity
		FROM order_items WHERE order_id=$1::uuid ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.LineItem{}
	for rows.Next() {
		var it orders.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
			&it.ProductName, &it.VariantLabel, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ReadOrdersByUser(ctx context.Context, userID int64) ([]orders.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status orders.Status) (int64, error) {
	ct, err := s.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1::uuid`, orderID, string(status))
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Store) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.From != nil {
		where = append(where, "created_at >= "+arg(orders.Day(*f.From)))
	}
	if f.To != nil {
		where = append(where, "created_at < "+arg(orders.Day(*f.To).AddDate(0, 0, 1)))
	}
	if f.Search != "" {
		term := arg("%" + escapeLike(f.Search) + "%")
		where = append(where, fmt.Sprintf(`(id::text = %s OR shipping_phone ILIKE %s ESCAPE '\' OR shipping_address ILIKE %s ESCAPE '\')`,
			arg(f.Search), term, term))
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	return s.queryOrders(ctx, q, args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	return s.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id LIMIT $1`, limit)
}

func (s *Store) CountByStatus(ctx context.Context) ([]orders.StatusCount, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT status, COUNT(*) FROM orders GROUP BY status
		ORDER BY array_position(ARRAY['pending','confirmed','shipping','delivered','cancelled'], status)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.StatusCount
	for rows.Next() {
		var (
			st string
			c  orders.StatusCount
		)
		if err := rows.Scan(&st, &c.Count); err != nil {
			return nil, err
		}
		c.Status = orders.Status(st)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DayTotals counts non-cancelled orders created on day and sums their totals.
func (s *Store) DayTotals(ctx context.Context, day time.Time) (int64, int64, error) {
	start := orders.Day(day)
	var n, revenue int64
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)::bigint FROM orders
		WHERE status <> 'cancelled' AND created_at >= $1 AND created_at < $2`,
		start, start.AddDate(0, 0, 1)).Scan(&n, &revenue)
	return n, revenue, err
}

func (s *Store) RevenueByDay(ctx context.Context, since time.Time) ([]orders.DayRevenue, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(total)::bigint, COUNT(*)
		FROM orders
		WHERE status <> 'cancelled' AND created_at >= $1
		GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.DayRevenue
	for rows.Next() {
		var d orders.DayRevenue
		if err := rows.Scan(&d.Date, &d.Total, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) TopVariants(ctx context.Context, since time.Time, limit int) ([]orders.TopVariant, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.product_id, oi.variant_id, MIN(oi.product_name), MIN(oi.variant_label),
		       SUM(oi.quantity)::bigint AS sold, SUM(oi.price * oi.quantity)::bigint
		FROM order_items oi JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'cancelled' AND o.created_at >= $1
		GROUP BY oi.product_id, oi.variant_id
		ORDER BY sold DESC, oi.variant_id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.TopVariant
	for rows.Next() {
		var tv orders.TopVariant
		if err := rows.Scan(&tv.ProductID, &tv.VariantID, &tv.ProductName, &tv.VariantLabel, &tv.Sold, &tv.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tv)
	}
	return out, rows.Err()
}

func (s *Store) queryOrders(ctx context.Context, q string, args ...any) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.Total, &o.ShippingAddress, &o.ShippingPhone,
		&o.Note, &o.CreatedAt, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}
