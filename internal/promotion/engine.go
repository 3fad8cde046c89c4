package promotion

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no promotion matches the provided code.
	ErrNotFound = errors.New("promotion not found")
	// ErrInactive is returned when the promotion has been disabled.
	ErrInactive = errors.New("promotion inactive")
	// ErrNotStarted is returned when attempting to use a promotion before its window opens.
	ErrNotStarted = errors.New("promotion not started")
	// ErrExpired is returned when the promotion window has already closed.
	ErrExpired = errors.New("promotion expired")
	// ErrMinQuantityUnmet indicates the cart does not hold enough doses for the promotion.
	ErrMinQuantityUnmet = errors.New("promotion minimum quantity not met")
	// ErrUnsupportedType is returned for discount types the engine does not know.
	ErrUnsupportedType = errors.New("promotion discount type unsupported")
)

// DiscountType enumerates how a promotion's value is interpreted.
type DiscountType string

const (
	// Percentage values are basis points of the subtotal.
	Percentage DiscountType = "percentage"
	// Fixed values are an amount in minor units.
	Fixed DiscountType = "fixed"
	// Points values are bonus loyalty points; they carry no currency discount.
	Points DiscountType = "points"
)

// ParseDiscountType normalises a stored discount type label.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(strings.ToLower(strings.TrimSpace(value))) {
	case Percentage:
		return Percentage, nil
	case Fixed:
		return Fixed, nil
	case Points:
		return Points, nil
	}
	return "", ErrUnsupportedType
}

// Promotion captures the runtime constraints of a promotion.
type Promotion struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	Title         string       `json:"title"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	ValidFrom     *time.Time   `json:"validFrom,omitempty"`
	ValidTo       *time.Time   `json:"validTo,omitempty"`
	MinQuantity   *int         `json:"minQuantity,omitempty"`
	Active        bool         `json:"active"`
}

// Validate ensures the promotion can be applied at the provided instant to a cart holding totalQty doses.
func (p Promotion) Validate(now time.Time, totalQty int) error {
	if !p.Active {
		return ErrInactive
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return ErrNotStarted
	}
	if p.ValidTo != nil && now.After(*p.ValidTo) {
		return ErrExpired
	}
	if p.MinQuantity != nil && totalQty < *p.MinQuantity {
		return ErrMinQuantityUnmet
	}
	if _, err := ParseDiscountType(string(p.DiscountType)); err != nil {
		return err
	}
	return nil
}

// Discount determines the currency discount the promotion grants against subtotal.
func (p Promotion) Discount(subtotal int64) int64 {
	if subtotal <= 0 || p.DiscountValue <= 0 {
		return 0
	}
	var discount int64
	switch p.DiscountType {
	case Percentage:
		discount = (subtotal * p.DiscountValue) / 10000
	case Fixed:
		discount = p.DiscountValue
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}

// BonusPoints returns the loyalty points awarded by a points promotion.
func (p Promotion) BonusPoints() int64 {
	if p.DiscountType != Points || p.DiscountValue <= 0 {
		return 0
	}
	return p.DiscountValue
}

// NormalizeCode upper-cases and trims a user supplied promotion code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
