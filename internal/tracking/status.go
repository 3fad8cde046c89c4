package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is returned when a delivery would move backwards or to
// an unknown state.
var ErrInvalidTransition = errors.New("invalid delivery status transition")

// Status is a delivery state.
type Status string

const (
	Preparing  Status = "PREPARING"
	Dispatched Status = "DISPATCHED"
	InTransit  Status = "IN_TRANSIT"
	Nearby     Status = "NEARBY"
	Delivered  Status = "DELIVERED"
)

var ranks = map[Status]int{
	Preparing:  0,
	Dispatched: 1,
	InTransit:  2,
	Nearby:     3,
	Delivered:  4,
}

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	_, ok := ranks[s]
	return ok
}

// Rank is the zero-based position of s on the delivery path, or -1.
func (s Status) Rank() int {
	r, ok := ranks[s]
	if !ok {
		return -1
	}
	return r
}

// Progress is the percentage of the path covered at s.
func (s Status) Progress() int {
	r := s.Rank()
	if r < 0 {
		return 0
	}
	return r * 100 / ranks[Delivered]
}

// Terminal reports whether no further transitions exist.
func (s Status) Terminal() bool {
	return s == Delivered
}

// CanTransition checks a move from current to next. Forward moves may skip
// states; staying put is allowed and is a no-op.
func CanTransition(current, next Status) error {
	if !current.Valid() || !next.Valid() {
		return fmt.Errorf("%s -> %s: %w", current, next, ErrInvalidTransition)
	}
	if next.Rank() < current.Rank() {
		return fmt.Errorf("%s -> %s: %w", current, next, ErrInvalidTransition)
	}
	return nil
}

// MapExternal converts a courier status label into a delivery state. ok is
// false for labels that carry no state change (for example "label_created").
func MapExternal(external string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "picked", "picked_up", "pickup", "dispatched", "shipped":
		return Dispatched, true
	case "in_transit", "in-transit", "transit":
		return InTransit, true
	case "out_for_delivery", "out-for-delivery", "nearby":
		return Nearby, true
	case "delivered":
		return Delivered, true
	}
	if s := Status(strings.ToUpper(strings.TrimSpace(external))); s.Valid() && s != Preparing {
		return s, true
	}
	return "", false
}
