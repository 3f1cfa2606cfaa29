package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
)

// StockError reports the line that could not be reserved. It matches
// ErrInsufficientStock under errors.Is.
type StockError struct {
	VariantID int64 `json:"variant_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
	Missing   bool  `json:"missing,omitempty"`
}

func (e *StockError) Error() string {
	if e.Missing {
		return fmt.Sprintf("insufficient stock: variant %d does not exist", e.VariantID)
	}
	return fmt.Sprintf("insufficient stock: variant %d has %d, requested %d", e.VariantID, e.Available, e.Requested)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }
