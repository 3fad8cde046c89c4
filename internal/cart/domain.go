package cart

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/vaxcart-api/internal/pricing"
)

var (
	// ErrNotFound indicates the cart does not exist or has expired.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidLineItem is returned for non-positive quantities or negative prices.
	ErrInvalidLineItem = errors.New("invalid cart line item")
	// ErrLineNotFound indicates the cart holds no line for the vaccine.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrOutOfStock is returned when the vaccine cannot be added at all.
	ErrOutOfStock = errors.New("vaccine out of stock")
	// ErrInsufficientStock is returned when the requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUndoExpired indicates the undo token is unknown or has lapsed.
	ErrUndoExpired = errors.New("undo token expired")
	// ErrEmpty is returned when an operation needs at least one line.
	ErrEmpty = errors.New("cart is empty")
)

// LineItem is one vaccine in a cart. Construct it with NewLineItem.
type LineItem struct {
	VaccineID string `json:"vaccineId"`
	Name      string `json:"name"`
	DoseLabel string `json:"doseLabel"`
	Qty       int    `json:"qty"`
	UnitPrice int64  `json:"unitPrice"`
}

// NewLineItem validates and builds a line item.
func NewLineItem(vaccineID, name, doseLabel string, qty int, unitPrice int64) (LineItem, error) {
	if strings.TrimSpace(vaccineID) == "" {
		return LineItem{}, fmt.Errorf("vaccine id required: %w", ErrInvalidLineItem)
	}
	if qty <= 0 {
		return LineItem{}, fmt.Errorf("qty %d: %w", qty, ErrInvalidLineItem)
	}
	if unitPrice < 0 {
		return LineItem{}, fmt.Errorf("unit price %d: %w", unitPrice, ErrInvalidLineItem)
	}
	return LineItem{VaccineID: vaccineID, Name: name, DoseLabel: doseLabel, Qty: qty, UnitPrice: unitPrice}, nil
}

// Subtotal is Qty × UnitPrice.
func (l LineItem) Subtotal() int64 {
	return int64(l.Qty) * l.UnitPrice
}

// WithQty returns a copy of the line with a new quantity, validated like NewLineItem.
func (l LineItem) WithQty(qty int) (LineItem, error) {
	return NewLineItem(l.VaccineID, l.Name, l.DoseLabel, qty, l.UnitPrice)
}

// Cart is the single shared cart state.
type Cart struct {
	ID            string     `json:"id"`
	Items         []LineItem `json:"items"`
	PromotionCode string     `json:"promotionCode,omitempty"`
	RedeemPoints  bool       `json:"redeemPoints"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (c *Cart) indexOf(vaccineID string) int {
	for i, it := range c.Items {
		if it.VaccineID == vaccineID {
			return i
		}
	}
	return -1
}

// Line returns the line for vaccineID.
func (c Cart) Line(vaccineID string) (LineItem, bool) {
	if i := c.indexOf(vaccineID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// TotalQty is the number of doses across all lines.
func (c Cart) TotalQty() int {
	total := 0
	for _, it := range c.Items {
		total += it.Qty
	}
	return total
}

// PricingItems projects the lines for the pricing engine.
func (c Cart) PricingItems() []pricing.Item {
	out := make([]pricing.Item, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	return out
}

// upsert replaces the line for item.VaccineID or appends it.
func (c *Cart) upsert(item LineItem) {
	if i := c.indexOf(item.VaccineID); i >= 0 {
		c.Items[i] = item
		return
	}
	c.Items = append(c.Items, item)
}

// remove deletes the line and reports where it was.
func (c *Cart) remove(vaccineID string) (LineItem, int, bool) {
	i := c.indexOf(vaccineID)
	if i < 0 {
		return LineItem{}, -1, false
	}
	item := c.Items[i]
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return item, i, true
}

// reinsert puts a removed line back at pos. If the vaccine was re-added in the
// meantime the quantities are merged instead.
func (c *Cart) reinsert(item LineItem, pos int) {
	if i := c.indexOf(item.VaccineID); i >= 0 {
		c.Items[i].Qty += item.Qty
		return
	}
	if pos < 0 || pos > len(c.Items) {
		pos = len(c.Items)
	}
	c.Items = append(c.Items, LineItem{})
	copy(c.Items[pos+1:], c.Items[pos:])
	c.Items[pos] = item
}
