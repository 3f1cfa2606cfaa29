package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type errorResp struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResp{Error: msg})
}

// writeServiceError maps the orders error taxonomy onto status codes.
// Anything outside it is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *orders.StockError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: orders.ErrInsufficientStock.Error(), Details: se})
	case errors.Is(err, orders.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, orders.ErrInsufficientStock.Error())
	case errors.Is(err, orders.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orders.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
