package orders_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/orders/ordertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService(t *testing.T) (*orders.Service, *ordertest.Store) {
	t.Helper()
	st := ordertest.New()
	return orders.NewService(st), st
}

func item(variantID, price int64, qty int) orders.ItemInput {
	return orders.ItemInput{
		ProductID:    variantID * 10,
		VariantID:    variantID,
		ProductName:  "Tee",
		VariantLabel: "M / Black",
		Price:        price,
		Quantity:     orders.Quantity(qty),
	}
}

func request(items ...orders.ItemInput) orders.PlaceOrderRequest {
	return orders.PlaceOrderRequest{
		ShippingAddress: "Jl. Sudirman 1, Jakarta",
		ShippingPhone:   "08123456789",
		Items:           items,
	}
}

func TestPlaceOrder_DecrementsStockAndComputesTotal(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(5, 10)

	o, items, err := svc.PlaceOrder(context.Background(), 42, request(item(5, 1000, 2)))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(42), o.UserID)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, int64(2000), o.Total)
	assert.Nil(t, o.Items)
	require.Len(t, items, 1)
	assert.Equal(t, o.ID, items[0].OrderID)
	assert.Equal(t, 2, items[0].Quantity)

	stock, _ := st.Stock(5)
	assert.Equal(t, 8, stock)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(7, 1)

	_, _, err := svc.PlaceOrder(context.Background(), 1, request(item(7, 500, 3)))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(7), se.VariantID)
	assert.Equal(t, 3, se.Requested)
	assert.Equal(t, 1, se.Available)

	stock, _ := st.Stock(7)
	assert.Equal(t, 1, stock)
	assert.Zero(t, st.OrderCount())
}

func TestPlaceOrder_MissingVariant(t *testing.T) {
	svc, st := newService(t)

	_, _, err := svc.PlaceOrder(context.Background(), 1, request(item(99, 500, 1)))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Missing)
	assert.Zero(t, st.OrderCount())
}

func TestPlaceOrder_Validation(t *testing.T) {
	cases := map[string]orders.PlaceOrderRequest{
		"empty items":   request(),
		"blank address": {ShippingAddress: "  ", ShippingPhone: "0812", Items: []orders.ItemInput{item(1, 1, 1)}},
		"blank phone":   {ShippingAddress: "Jl. A", ShippingPhone: "", Items: []orders.ItemInput{item(1, 1, 1)}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			svc, st := newService(t)
			st.SetStock(1, 10)
			_, _, err := svc.PlaceOrder(context.Background(), 1, req)
			require.ErrorIs(t, err, orders.ErrInvalidRequest)
			assert.Zero(t, st.OrderCount())
			stock, _ := st.Stock(1)
			assert.Equal(t, 10, stock)
		})
	}
}

func TestPlaceOrder_SecondLineFailsLeavesNothing(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	st.SetStock(2, 1)

	_, _, err := svc.PlaceOrder(context.Background(), 1, request(item(1, 100, 4), item(2, 100, 2)))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	s1, _ := st.Stock(1)
	s2, _ := st.Stock(2)
	assert.Equal(t, 10, s1)
	assert.Equal(t, 1, s2)
	assert.Zero(t, st.OrderCount())
	assert.Zero(t, st.ItemCount())
}

func TestPlaceOrder_StoreFailureRollsBack(t *testing.T) {
	for _, op := range []string{ordertest.OpInsertOrder, ordertest.OpInsertOrderItem, ordertest.OpCommit} {
		t.Run(op, func(t *testing.T) {
			svc, st := newService(t)
			st.SetStock(1, 10)
			st.FailNext(op, nil)

			_, _, err := svc.PlaceOrder(context.Background(), 1, request(item(1, 100, 3)))
			require.ErrorIs(t, err, ordertest.ErrInjected)
			assert.NotErrorIs(t, err, orders.ErrInsufficientStock)

			stock, _ := st.Stock(1)
			assert.Equal(t, 10, stock)
			assert.Zero(t, st.OrderCount())
		})
	}
}

func TestPlaceOrder_QuantityClampedToOne(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(3, 5)

	o, items, err := svc.PlaceOrder(context.Background(), 1, request(item(3, 250, 0), item(3, 250, -4)))
	require.NoError(t, err)
	assert.Equal(t, int64(500), o.Total)
	for _, it := range items {
		assert.Equal(t, 1, it.Quantity)
	}
	stock, _ := st.Stock(3)
	assert.Equal(t, 3, stock)
}

func TestPlaceOrder_RepeatedVariantChecksCombinedQuantity(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(4, 5)

	_, _, err := svc.PlaceOrder(context.Background(), 1, request(item(4, 100, 3), item(4, 100, 3)))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Requested)
	assert.Equal(t, 5, se.Available)

	stock, _ := st.Stock(4)
	assert.Equal(t, 5, stock)

	_, items, err := svc.PlaceOrder(context.Background(), 1, request(item(4, 100, 2), item(4, 100, 3)))
	require.NoError(t, err)
	assert.Len(t, items, 2)
	stock, _ = st.Stock(4)
	assert.Zero(t, stock)
}

func TestPlaceOrder_LocksVariantsInAscendingOrder(t *testing.T) {
	svc, st := newService(t)
	for _, id := range []int64{3, 7, 9} {
		st.SetStock(id, 10)
	}

	_, items, err := svc.PlaceOrder(context.Background(), 1, request(item(9, 100, 1), item(3, 100, 1), item(7, 100, 1), item(3, 100, 2)))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7, 9}, st.StockReads())

	// line items keep the submitted order
	got := make([]int64, 0, len(items))
	for _, it := range items {
		got = append(got, it.VariantID)
	}
	assert.Equal(t, []int64{9, 3, 7, 3}, got)
	stock, _ := st.Stock(3)
	assert.Equal(t, 7, stock)
}

func TestPlaceOrder_OppositeCartOrdersConcurrently(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 100)
	st.SetStock(2, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := request(item(1, 100, 1), item(2, 100, 1))
			if i%2 == 1 {
				r = request(item(2, 100, 1), item(1, 100, 1))
			}
			_, _, err := svc.PlaceOrder(context.Background(), int64(i+1), r)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s1, _ := st.Stock(1)
	s2, _ := st.Stock(2)
	assert.Equal(t, 50, s1)
	assert.Equal(t, 50, s2)
	assert.Equal(t, 50, st.OrderCount())
}

func TestPlaceOrder_TotalOverflowRejected(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)

	cases := map[string]orders.PlaceOrderRequest{
		"line product": request(item(1, math.MaxInt64/2+1, 2)),
		"sum of lines": request(item(1, math.MaxInt64-10, 1), item(1, 11, 1)),
		"negative":     request(item(1, math.MinInt64, 2)),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.PlaceOrder(context.Background(), 1, req)
			require.ErrorIs(t, err, orders.ErrInvalidRequest)
			stock, _ := st.Stock(1)
			assert.Equal(t, 10, stock)
			assert.Zero(t, st.OrderCount())
		})
	}

	o, _, err := svc.PlaceOrder(context.Background(), 1, request(item(1, math.MaxInt64-10, 1), item(1, 10, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), o.Total)
}

func TestPlaceOrder_BlankNoteDropped(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 1)
	note := "   "
	req := request(item(1, 100, 1))
	req.Note = &note

	o, _, err := svc.PlaceOrder(context.Background(), 1, req)
	require.NoError(t, err)
	assert.Nil(t, o.Note)
}

func TestPlaceOrder_ConcurrentNeverOversells(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(9, 5)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, _, err := svc.PlaceOrder(context.Background(), user, request(item(9, 100, 1)))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, orders.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(15), short.Load())
	stock, _ := st.Stock(9)
	assert.Zero(t, stock)
	assert.Equal(t, 5, st.OrderCount())
}

func TestGetOrder_ReadBackMatchesList(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	st.SetStock(2, 10)
	ctx := context.Background()

	placed, _, err := svc.PlaceOrder(ctx, 7, request(item(1, 100, 2), item(2, 300, 1)))
	require.NoError(t, err)

	got, err := svc.GetOrderByID(ctx, placed.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, placed.Total, got.Total)
	require.Len(t, got.Items, 2)

	list, err := svc.GetOrdersByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *got, list[0])
}

func TestGetOrdersByUser_NewestFirstAndEmpty(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	ctx := context.Background()

	list, err := svc.GetOrdersByUser(ctx, 7)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	first, _, err := svc.PlaceOrder(ctx, 7, request(item(1, 100, 1)))
	require.NoError(t, err)
	second, _, err := svc.PlaceOrder(ctx, 7, request(item(1, 100, 1)))
	require.NoError(t, err)

	list, err = svc.GetOrdersByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestGetOrderByID_OwnershipIsolation(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	ctx := context.Background()

	o, _, err := svc.PlaceOrder(ctx, 1, request(item(1, 100, 1)))
	require.NoError(t, err)

	_, err = svc.GetOrderByID(ctx, o.ID, 2)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	list, err := svc.GetOrdersByUser(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetOrderByID(ctx, "not-a-uuid", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = svc.GetOrderByID(ctx, "3f1c1b0e-6a55-4b5e-9d59-2f0e4c8f0a11", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	ctx := context.Background()
	o, _, err := svc.PlaceOrder(ctx, 1, request(item(1, 100, 1)))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, o.ID, "shipped")
	require.ErrorIs(t, err, orders.ErrInvalidRequest)
	got, err := svc.GetOrderByID(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)

	// any recognised status is accepted from any other
	for _, s := range []string{"delivered", "pending", "cancelled", "confirmed"} {
		status, err := svc.UpdateStatus(ctx, o.ID, s)
		require.NoError(t, err)
		assert.Equal(t, orders.Status(s), status)
	}
	got, err = svc.GetOrderByID(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, got.Status)

	_, err = svc.UpdateStatus(ctx, "3f1c1b0e-6a55-4b5e-9d59-2f0e4c8f0a11", "confirmed")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = svc.UpdateStatus(ctx, "nope", "confirmed")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestUpdateStatus_StoreFailure(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 10)
	ctx := context.Background()
	o, _, err := svc.PlaceOrder(ctx, 1, request(item(1, 100, 1)))
	require.NoError(t, err)

	st.FailNext(ordertest.OpUpdateOrderStatus, nil)
	_, err = svc.UpdateStatus(ctx, o.ID, "confirmed")
	require.ErrorIs(t, err, ordertest.ErrInjected)
	assert.NotErrorIs(t, err, orders.ErrNotFound)
}

func TestListOrders_Filters(t *testing.T) {
	svc, st := newService(t)
	st.SetStock(1, 100)
	ctx := context.Background()

	a, _, err := svc.PlaceOrder(ctx, 1, request(item(1, 100, 1)))
	require.NoError(t, err)
	req := request(item(1, 100, 1))
	req.ShippingPhone = "0899-555"
	req.ShippingAddress = "Jl. Braga 9, Bandung"
	b, _, err := svc.PlaceOrder(ctx, 2, req)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, b.ID, "shipping")
	require.NoError(t, err)

	all, err := svc.ListOrders(ctx, orders.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, all[0].Items, 1)

	shipping, err := svc.ListOrders(ctx, orders.OrderFilter{Status: "shipping"})
	require.NoError(t, err)
	require.Len(t, shipping, 1)
	assert.Equal(t, b.ID, shipping[0].ID)

	byAddr, err := svc.ListOrders(ctx, orders.OrderFilter{Search: "bandung"})
	require.NoError(t, err)
	require.Len(t, byAddr, 1)
	assert.Equal(t, b.ID, byAddr[0].ID)

	byID, err := svc.ListOrders(ctx, orders.OrderFilter{Search: a.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, a.ID, byID[0].ID)

	tomorrow := time.Now().AddDate(0, 0, 1)
	none, err := svc.ListOrders(ctx, orders.OrderFilter{From: &tomorrow})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	st := ordertest.New()
	st.Now = func() time.Time { return now }
	svc := orders.NewService(st).WithClock(func() time.Time { return now })
	ctx := context.Background()
	st.SetStock(1, 100)
	st.SetStock(2, 100)

	a, _, err := svc.PlaceOrder(ctx, 1, request(item(1, 100, 3)))
	require.NoError(t, err)
	_, _, err = svc.PlaceOrder(ctx, 1, request(item(2, 1000, 1)))
	require.NoError(t, err)
	c, _, err := svc.PlaceOrder(ctx, 2, request(item(2, 1000, 2)))
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, a.ID, "confirmed")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, c.ID, "cancelled")
	require.NoError(t, err)

	staff, err := svc.StaffStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), staff.Summary.PendingOrders)
	assert.Equal(t, int64(2), staff.Summary.TodayOrders)
	assert.Equal(t, int64(1), staff.Summary.ProcessingOrders)
	assert.Len(t, staff.Recent, 3)

	admin, err := svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), admin.Summary.TodayRevenue)
	assert.Equal(t, int64(2), admin.Summary.TodayOrders)
	assert.Equal(t, int64(1), admin.Summary.PendingOrders)
	require.Len(t, admin.RevenueByDay, 1)
	assert.Equal(t, "2026-03-14", admin.RevenueByDay[0].Date)
	require.Len(t, admin.TopProducts, 2)
	assert.Equal(t, int64(1), admin.TopProducts[0].VariantID)
	assert.Equal(t, int64(3), admin.TopProducts[0].Sold)
	assert.Len(t, admin.StatusCounts, 3)
}

func TestAdminStats_EmptyStore(t *testing.T) {
	svc, _ := newService(t)
	admin, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, admin.RevenueByDay)
	assert.NotNil(t, admin.TopProducts)
	assert.NotNil(t, admin.StatusCounts)
}
