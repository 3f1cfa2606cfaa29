package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type PlaceOrderRequest struct {
	ShippingAddress string      `json:"shipping_address"`
	ShippingPhone   string      `json:"shipping_phone"`
	Note            *string     `json:"note,omitempty"`
	Items           []ItemInput `json:"items"`
}

// ItemInput is one cart line as submitted by the client. Price is trusted
// as sent; stock is always re-read from the catalog.
type ItemInput struct {
	ProductID    int64    `json:"product_id"`
	VariantID    int64    `json:"variant_id"`
	VariantLabel string   `json:"variant_label"`
	ProductName  string   `json:"product_name"`
	Price        int64    `json:"price"`
	Quantity     Quantity `json:"quantity"`
}

// Quantity decodes leniently: numbers are truncated, strings use their
// leading integer, anything else becomes 0. It never fails decoding.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*q = 0
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*q = Quantity(leadingInt(s))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil || math.IsNaN(f) {
			return nil
		}
		*q = Quantity(clampInt(math.Trunc(f)))
	}
	return nil
}

// Normalized clamps to a minimum of 1.
func (q Quantity) Normalized() int {
	if q < 1 {
		return 1
	}
	return int(q)
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return clampInt(f)
}

func clampInt(f float64) int {
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

func (r PlaceOrderRequest) Validate() error {
	if strings.TrimSpace(r.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping_address is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.ShippingPhone) == "" {
		return fmt.Errorf("%w: shipping_phone is required", ErrInvalidRequest)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: items must be a non-empty list", ErrInvalidRequest)
	}
	return nil
}
