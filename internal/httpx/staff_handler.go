package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func (h *OrdersHandler) staffOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Orders.ListOrders(r.Context(), orders.OrderFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) adminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.OrderFilter{Status: q.Get("status"), Search: q.Get("search")}
	var err error
	if f.From, err = parseDate(q.Get("date_from")); err != nil {
		writeError(w, http.StatusBadRequest, "date_from must be YYYY-MM-DD")
		return
	}
	if f.To, err = parseDate(q.Get("date_to")); err != nil {
		writeError(w, http.StatusBadRequest, "date_to must be YYYY-MM-DD")
		return
	}

	list, err := h.Orders.ListOrders(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) staffStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orders.StaffStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *OrdersHandler) adminStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Orders.AdminStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *OrdersHandler) liveStats(w http.ResponseWriter, r *http.Request) {
	if h.Live == nil {
		writeError(w, http.StatusServiceUnavailable, "live stats unavailable")
		return
	}
	day := time.Now()
	if d, err := parseDate(r.URL.Query().Get("date")); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	} else if d != nil {
		day = *d
	}

	l, err := h.Live.Live(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
