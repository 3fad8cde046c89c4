package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a textual amount cannot be represented in minor units.
var ErrInvalidAmount = errors.New("invalid amount")

// MinorUnits is the number of decimal places carried by Money.
const MinorUnits = 2

// ParseAmount converts a decimal string such as "25.50" into minor units.
// Negative values and values with more than two decimal places are rejected.
func ParseAmount(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount: %w", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", trimmed, ErrInvalidAmount)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %q: %w", trimmed, ErrInvalidAmount)
	}
	scaled := d.Shift(MinorUnits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("too many decimals in %q: %w", trimmed, ErrInvalidAmount)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q out of range: %w", trimmed, ErrInvalidAmount)
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders minor units as a fixed two-decimal string.
func FormatAmount(m Money) string {
	return decimal.New(m, -MinorUnits).StringFixed(MinorUnits)
}
