// Package ordertest provides an in-memory orders.Store with real
// transaction semantics for tests: one mutex serialises transactions and
// writes are staged until commit.
package ordertest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/google/uuid"
)

// ErrInjected is the default error returned by FailNext.
var ErrInjected = errors.New("ordertest: injected failure")

// Operation names accepted by FailNext.
const (
	OpReadVariantStock      = "ReadVariantStock"
	OpDecrementVariantStock = "DecrementVariantStock"
	OpInsertOrder           = "InsertOrder"
	OpInsertOrderItem       = "InsertOrderItem"
	OpCommit                = "Commit"
	OpReadOrder             = "ReadOrder"
	OpUpdateOrderStatus     = "UpdateOrderStatus"
)

type Store struct {
	mu       sync.Mutex
	variants map[int64]int
	orders   map[string]*orders.Order
	seq      map[string]int
	items    map[string][]orders.LineItem
	nextSeq  int
	nextItem int64
	fail     map[string]error
	reads    []int64

	// Now stamps CreatedAt/UpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

var _ orders.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		variants: map[int64]int{},
		orders:   map[string]*orders.Order{},
		seq:      map[string]int{},
		items:    map[string][]orders.LineItem{},
		fail:     map[string]error{},
		Now:      time.Now,
	}
}

func (s *Store) SetStock(variantID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[variantID] = stock
}

func (s *Store) Stock(variantID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	return v, ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, its := range s.items {
		n += len(its)
	}
	return n
}

// StockReads lists, in call order, every variant id read inside a
// transaction, committed or not.
func (s *Store) StockReads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.reads...)
}

// FailNext makes the next call of op return err (ErrInjected when nil).
func (s *Store) FailNext(op string, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *Store) takeFailure(op string) error {
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

type stagedOrder struct {
	order *orders.Order
	items []orders.LineItem
}

type tx struct {
	s      *Store
	stock  map[int64]int
	placed []*stagedOrder
	byID   map[string]*stagedOrder
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, stock: map[int64]int{}, byID: map[string]*stagedOrder{}}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.takeFailure(OpCommit); err != nil {
		return err
	}

	for id, v := range t.stock {
		s.variants[id] = v
	}
	for _, st := range t.placed {
		s.nextSeq++
		s.orders[st.order.ID] = st.order
		s.seq[st.order.ID] = s.nextSeq
		s.items[st.order.ID] = st.items
		s.nextItem += int64(len(st.items))
	}
	return nil
}

func (t *tx) ReadVariantStock(ctx context.Context, variantID int64) (int, error) {
	if err := t.s.takeFailure(OpReadVariantStock); err != nil {
		return 0, err
	}
	t.s.reads = append(t.s.reads, variantID)
	return t.stockOf(variantID)
}

func (t *tx) stockOf(variantID int64) (int, error) {
	if v, ok := t.stock[variantID]; ok {
		return v, nil
	}
	v, ok := t.s.variants[variantID]
	if !ok {
		return 0, orders.ErrNotFound
	}
	return v, nil
}

func (t *tx) DecrementVariantStock(ctx context.Context, variantID int64, qty int) error {
	if err := t.s.takeFailure(OpDecrementVariantStock); err != nil {
		return err
	}
	cur, err := t.stockOf(variantID)
	if err != nil {
		return err
	}
	if cur < qty {
		return orders.ErrInsufficientStock
	}
	t.stock[variantID] = cur - qty
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if err := t.s.takeFailure(OpInsertOrder); err != nil {
		return err
	}
	now := t.s.Now()
	o.ID = uuid.NewString()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	st := &stagedOrder{order: &cp}
	t.placed = append(t.placed, st)
	t.byID[o.ID] = st
	return nil
}

func (t *tx) InsertOrderItem(ctx context.Context, orderID string, it *orders.LineItem) error {
	if err := t.s.takeFailure(OpInsertOrderItem); err != nil {
		return err
	}
	st, ok := t.byID[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	it.ID = t.s.nextItem + int64(t.pendingItems()) + 1
	it.OrderID = orderID
	st.items = append(st.items, *it)
	return nil
}

func (t *tx) pendingItems() int {
	n := 0
	for _, st := range t.placed {
		n += len(st.items)
	}
	return n
}

func (s *Store) ReadOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(OpReadOrder); err != nil {
		return nil, err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ReadOrderItems(ctx context.Context, orderID string) ([]orders.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.items[orderID]
	out := make([]orders.LineItem, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) ReadOrdersByUser(ctx context.Context, userID int64) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(o *orders.Order) bool { return o.UserID == userID }), nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status orders.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(OpUpdateOrderStatus); err != nil {
		return 0, err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return 0, nil
	}
	o.Status = status
	o.UpdatedAt = s.Now()
	return 1, nil
}

func (s *Store) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	term := strings.ToLower(f.Search)
	return s.sorted(func(o *orders.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		day := orders.Day(o.CreatedAt)
		if f.From != nil && day.Before(orders.Day(*f.From)) {
			return false
		}
		if f.To != nil && day.After(orders.Day(*f.To)) {
			return false
		}
		if term != "" {
			return o.ID == f.Search ||
				strings.Contains(strings.ToLower(o.ShippingPhone), term) ||
				strings.Contains(strings.ToLower(o.ShippingAddress), term)
		}
		return true
	}), nil
}

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sorted(func(*orders.Order) bool { return true })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) CountByStatus(ctx context.Context) ([]orders.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := map[orders.Status]int64{}
	for _, o := range s.orders {
		m[o.Status]++
	}
	var out []orders.StatusCount
	for _, st := range orders.Statuses {
		if m[st] > 0 {
			out = append(out, orders.StatusCount{Status: st, Count: m[st]})
		}
	}
	return out, nil
}

func (s *Store) DayTotals(ctx context.Context, day time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n, rev int64
	for _, o := range s.orders {
		if o.Status == orders.StatusCancelled || !orders.Day(o.CreatedAt).Equal(orders.Day(day)) {
			continue
		}
		n++
		rev += o.Total
	}
	return n, rev, nil
}

func (s *Store) RevenueByDay(ctx context.Context, since time.Time) ([]orders.DayRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := map[string]*orders.DayRevenue{}
	for _, o := range s.orders {
		if o.Status == orders.StatusCancelled || o.CreatedAt.Before(since) {
			continue
		}
		key := orders.Day(o.CreatedAt).Format(time.DateOnly)
		d, ok := byDay[key]
		if !ok {
			d = &orders.DayRevenue{Date: key}
			byDay[key] = d
		}
		d.Total += o.Total
		d.Count++
	}
	out := make([]orders.DayRevenue, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) TopVariants(ctx context.Context, since time.Time, limit int) ([]orders.TopVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct{ product, variant int64 }
	agg := map[key]*orders.TopVariant{}
	for id, o := range s.orders {
		if o.Status == orders.StatusCancelled || o.CreatedAt.Before(since) {
			continue
		}
		for _, it := range s.items[id] {
			k := key{it.ProductID, it.VariantID}
			tv, ok := agg[k]
			if !ok {
				tv = &orders.TopVariant{
					ProductID:    it.ProductID,
					VariantID:    it.VariantID,
					ProductName:  it.ProductName,
					VariantLabel: it.VariantLabel,
				}
				agg[k] = tv
			}
			tv.Sold += int64(it.Quantity)
			tv.Revenue += it.Price * int64(it.Quantity)
		}
	}
	out := make([]orders.TopVariant, 0, len(agg))
	for _, tv := range agg {
		out = append(out, *tv)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sold != out[j].Sold {
			return out[i].Sold > out[j].Sold
		}
		return out[i].VariantID < out[j].VariantID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sorted returns copies of the matching orders, newest first. Caller holds mu.
func (s *Store) sorted(keep func(*orders.Order) bool) []orders.Order {
	var out []orders.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out
}
