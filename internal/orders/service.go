package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	recentOrdersLimit = 10
	topVariantsLimit  = 10
	statsWindowDays   = 30
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the clock used for "today" in reports.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlaceOrder validates the request, reserves stock for every line and
// persists the order with its items in one transaction. Either all of it
// happens or none of it does. The returned order has no Items attached; the
// persisted line items are returned separately.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*Order, []LineItem, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var total int64
	items := make([]LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		qty := in.Quantity.Normalized()
		items = append(items, LineItem{
			ProductID:    in.ProductID,
			VariantID:    in.VariantID,
			ProductName:  in.ProductName,
			VariantLabel: in.VariantLabel,
			Price:        in.Price,
			Quantity:     qty,
		})
		var ok bool
		if total, ok = addLine(total, in.Price, qty); !ok {
			return nil, nil, fmt.Errorf("%w: order total overflows", ErrInvalidRequest)
		}
	}

	order := &Order{
		UserID:          userID,
		Status:          StatusPending,
		Total:           total,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		ShippingPhone:   strings.TrimSpace(req.ShippingPhone),
		Note:            normalizeNote(req.Note),
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Rows are locked in ascending variant id so two carts holding the
		// same variants in different order cannot deadlock.
		for _, r := range reservations(items) {
			stock, err := tx.ReadVariantStock(ctx, r.variantID)
			if errors.Is(err, ErrNotFound) {
				return &StockError{VariantID: r.variantID, Requested: r.qty, Missing: true}
			}
			if err != nil {
				return fmt.Errorf("read stock of variant %d: %w", r.variantID, err)
			}
			if stock < r.qty {
				return &StockError{VariantID: r.variantID, Requested: r.qty, Available: stock}
			}
			if err := tx.DecrementVariantStock(ctx, r.variantID, r.qty); err != nil {
				return fmt.Errorf("decrement stock of variant %d: %w", r.variantID, err)
			}
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i := range items {
			if err := tx.InsertOrderItem(ctx, order.ID, &items[i]); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("order placed: id=%s user=%d items=%d total=%d", order.ID, userID, len(items), total)
	return order, items, nil
}

// GetOrdersByUser returns the user's orders newest first, each with its
// items. No orders yields an empty slice.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]Order, error) {
	list, err := s.store.ReadOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, list)
}

// GetOrderByID returns ErrNotFound both when the order does not exist and
// when it belongs to someone else.
func (s *Service) GetOrderByID(ctx context.Context, orderID string, userID int64) (*Order, error) {
	if !validOrderID(orderID) {
		return nil, ErrNotFound
	}
	o, err := s.store.ReadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	items, err := s.store.ReadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// UpdateStatus sets any recognised status regardless of the current one.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (Status, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return "", err
	}
	if !validOrderID(orderID) {
		return "", ErrNotFound
	}
	n, err := s.store.UpdateOrderStatus(ctx, orderID, st)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrNotFound
	}
	log.Printf("order status updated: id=%s status=%s", orderID, st)
	return st, nil
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	f.Status = strings.TrimSpace(f.Status)
	f.Search = strings.TrimSpace(f.Search)
	list, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, list)
}

func (s *Service) StaffStats(ctx context.Context) (*StaffStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	todayOrders, _, err := s.store.DayTotals(ctx, Day(s.now()))
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentOrders(ctx, recentOrdersLimit)
	if err != nil {
		return nil, err
	}
	byStatus := indexCounts(counts)
	return &StaffStats{
		Summary: StaffSummary{
			PendingOrders:    byStatus[StatusPending],
			TodayOrders:      todayOrders,
			ProcessingOrders: byStatus[StatusConfirmed] + byStatus[StatusShipping],
		},
		Recent: nonNil(recent),
	}, nil
}

func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	today := Day(s.now())
	since := today.AddDate(0, 0, -statsWindowDays)

	revenue, err := s.store.RevenueByDay(ctx, since)
	if err != nil {
		return nil, err
	}
	todayOrders, todayRevenue, err := s.store.DayTotals(ctx, today)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopVariants(ctx, since, topVariantsLimit)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	if revenue == nil {
		revenue = []DayRevenue{}
	}
	if top == nil {
		top = []TopVariant{}
	}
	if counts == nil {
		counts = []StatusCount{}
	}
	return &AdminStats{
		RevenueByDay: revenue,
		Summary: AdminSummary{
			TodayRevenue:  todayRevenue,
			TodayOrders:   todayOrders,
			PendingOrders: indexCounts(counts)[StatusPending],
		},
		TopProducts:  top,
		StatusCounts: counts,
	}, nil
}

func (s *Service) attachItems(ctx context.Context, list []Order) ([]Order, error) {
	for i := range list {
		items, err := s.store.ReadOrderItems(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Items = items
	}
	return nonNil(list), nil
}

type reservation struct {
	variantID int64
	qty       int
}

// reservations sums quantities per variant, sorted by variant id.
func reservations(items []LineItem) []reservation {
	byVariant := map[int64]int{}
	for _, it := range items {
		byVariant[it.VariantID] += it.Quantity
	}
	out := make([]reservation, 0, len(byVariant))
	for id, qty := range byVariant {
		out = append(out, reservation{variantID: id, qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].variantID < out[j].variantID })
	return out
}

// addLine returns total + price*qty, or false when either step overflows int64.
func addLine(total, price int64, qty int) (int64, bool) {
	line := price * int64(qty)
	if qty != 0 && line/int64(qty) != price {
		return 0, false
	}
	sum := total + line
	if (line > 0 && sum < total) || (line < 0 && sum > total) {
		return 0, false
	}
	return sum, true
}

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validOrderID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeNote(n *string) *string {
	if n == nil {
		return nil
	}
	t := strings.TrimSpace(*n)
	if t == "" {
		return nil
	}
	return &t
}

func indexCounts(counts []StatusCount) map[Status]int64 {
	m := make(map[Status]int64, len(counts))
	for _, c := range counts {
		m[c.Status] = c.Count
	}
	return m
}

func nonNil(list []Order) []Order {
	if list == nil {
		return []Order{}
	}
	return list
}
