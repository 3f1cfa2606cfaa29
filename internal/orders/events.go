package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"

	EventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id"`
	Qty       int   `json:"qty"`
	Price     int64 `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID   string       `json:"order_id"`
	UserID    int64        `json:"user_id"`
	Total     int64        `json:"total"`
	Items     []PlacedItem `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
}

func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

func PlacedPayload(o *Order, items []LineItem) OrderPlacedPayload {
	p := OrderPlacedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Items:     make([]PlacedItem, 0, len(items)),
		CreatedAt: o.CreatedAt,
	}
	for _, it := range items {
		p.Items = append(p.Items, PlacedItem{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Qty:       it.Quantity,
			Price:     it.Price,
		})
	}
	return p
}
