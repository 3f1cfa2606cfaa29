package httpx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/auth"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

const headerIdempotencyKey = "Idempotency-Key"

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// IdempotencyStore must claim atomically: of concurrent Claims for one key
// exactly one returns claimed=true.
type IdempotencyStore interface {
	Claim(ctx context.Context, userID int64, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, userID int64, key, orderID string) error
	Release(ctx context.Context, userID int64, key string) error
}

type LiveStats interface {
	Live(ctx context.Context, day time.Time) (*stats.Live, error)
}

type OrdersHandler struct {
	Orders        *orders.Service
	Placed        Publisher // order.placed
	StatusChanged Publisher // order.status.changed
	Idempotency   IdempotencyStore
	Live          LiveStats
	Secret        []byte
	Service       string
}

type placeOrderResp struct {
	Message    string        `json:"message"`
	Order      *orders.Order `json:"order"`
	Idempotent bool          `json:"idempotent,omitempty"`
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(h.Secret))

		r.Route("/orders", func(r chi.Router) {
			r.With(auth.RequireRole(auth.RoleCustomer)).Post("/", h.placeOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.With(auth.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Patch("/{id}/status", h.updateStatus)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleStaff, auth.RoleAdmin))
			r.Get("/orders", h.staffOrders)
			r.Get("/stats", h.staffStats)
			r.Patch("/orders/{id}/status", h.updateStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/orders", h.adminOrders)
			r.Patch("/orders/{id}/status", h.updateStatus)
			r.Get("/stats", h.adminStats)
			r.Get("/stats/live", h.liveStats)
		})
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req orders.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if h.Idempotency == nil {
		idemKey = ""
	}
	if idemKey != "" {
		prevID, claimed, err := h.Idempotency.Claim(ctx, id.UserID, idemKey)
		switch {
		case err != nil:
			log.Printf("idempotency claim: %v", err)
			writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
			return
		case !claimed && prevID == "":
			writeError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
			return
		case !claimed:
			h.replay(w, r, prevID, id.UserID)
			return
		}
	}

	order, items, err := h.Orders.PlaceOrder(ctx, id.UserID, req)
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idempotency.Release(context.WithoutCancel(ctx), id.UserID, idemKey); rerr != nil {
				log.Printf("idempotency release: %v", rerr)
			}
		}
		writeServiceError(w, r, err)
		return
	}

	if idemKey != "" {
		if err := h.Idempotency.Complete(context.WithoutCancel(ctx), id.UserID, idemKey, order.ID); err != nil {
			log.Printf("idempotency complete order=%s: %v", order.ID, err)
		}
	}
	h.publish(h.Placed, r, orders.EventOrderPlaced, order.ID, orders.PlacedPayload(order, items))

	writeJSON(w, http.StatusCreated, placeOrderResp{Message: "order placed", Order: order})
}

// replay answers with the order a previous request with the same key
// produced. Nothing is placed or published again.
func (h *OrdersHandler) replay(w http.ResponseWriter, r *http.Request, orderID string, userID int64) {
	o, err := h.Orders.GetOrderByID(r.Context(), orderID, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, placeOrderResp{Message: "order already placed", Order: o, Idempotent: true})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	list, err := h.Orders.GetOrdersByUser(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	o, err := h.Orders.GetOrderByID(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.Orders.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.publish(h.StatusChanged, r, orders.EventOrderStatusChanged, orderID,
		orders.OrderStatusChangedPayload{OrderID: orderID, Status: st})

	writeJSON(w, http.StatusOK, map[string]any{"message": "status updated", "status": st})
}

// publish is fire-and-forget: the order is already committed.
func (h *OrdersHandler) publish(p Publisher, r *http.Request, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, h.Service, middleware.GetReqID(r.Context()), orderID, payload)
	if err != nil {
		log.Printf("build %s event for order %s: %v", eventType, orderID, err)
		return
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.EventHeaders(eventType, orders.EventVersion)...)
}
