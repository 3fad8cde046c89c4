package inventory

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a stock record carries negative counters.
var ErrInvalidRecord = errors.New("invalid inventory record")

// Label is the availability state shown next to a catalog entry.
type Label string

const (
	OutOfStock Label = "OUT_OF_STOCK"
	LowStock   Label = "LOW_STOCK"
	Available  Label = "AVAILABLE"
)

// Record is the read-only stock snapshot for a vaccine.
type Record struct {
	VaccineID         string `json:"vaccineId"`
	StockLevel        int    `json:"stockLevel"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	IsAvailable       bool   `json:"isAvailable"`
}

// Validate rejects records with negative counters.
func (r Record) Validate() error {
	if r.StockLevel < 0 {
		return fmt.Errorf("stock level %d: %w", r.StockLevel, ErrInvalidRecord)
	}
	if r.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold %d: %w", r.LowStockThreshold, ErrInvalidRecord)
	}
	return nil
}

// Classify derives the availability label. A disabled record or an empty shelf is
// always out of stock regardless of the other fields.
func Classify(r Record) Label {
	if !r.IsAvailable || r.StockLevel <= 0 {
		return OutOfStock
	}
	if r.StockLevel <= r.LowStockThreshold {
		return LowStock
	}
	return Available
}

// CanAddToCart reports whether the label allows new cart lines.
func (l Label) CanAddToCart() bool {
	return l == LowStock || l == Available
}

// Covers reports whether the record can satisfy qty doses. Nothing is reserved.
func (r Record) Covers(qty int) bool {
	return Classify(r).CanAddToCart() && qty <= r.StockLevel
}
