package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Subtotal returns the line contribution to the cart subtotal.
func (it Item) Subtotal() Money {
	if it.Qty <= 0 || it.UnitPrice <= 0 {
		return 0
	}
	return Money(it.Qty) * it.UnitPrice
}

// Policy holds the fixed commercial rules applied to every cart.
type Policy struct {
	// TaxBps is the ITBIS rate in basis points.
	TaxBps int
	// FreeShippingOver is the subtotal that must be strictly exceeded to waive shipping.
	FreeShippingOver Money
	ShippingFee      Money
	// PointValue is the amount one loyalty point is worth.
	PointValue Money
	// PointsCapBps caps the points discount as a share of the subtotal.
	PointsCapBps int
}

// DefaultPolicy returns the storefront rules: 18% ITBIS, free shipping over 100.00,
// flat 15.00 shipping otherwise, one point worth 0.01 and redemption capped at 10%.
func DefaultPolicy() Policy {
	return Policy{
		TaxBps:           1800,
		FreeShippingOver: 10000,
		ShippingFee:      1500,
		PointValue:       1,
		PointsCapBps:     1000,
	}
}

// Input groups everything required to price a cart.
type Input struct {
	Items []Item
	// PromotionDiscount is the discount already resolved from the applied promotion.
	PromotionDiscount Money
	RedeemPoints      bool
	AvailablePoints   int64
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal          Money `json:"subtotal"`
	PromotionDiscount Money `json:"promotionDiscount"`
	PointsDiscount    Money `json:"pointsDiscount"`
	PointsRedeemed    int64 `json:"pointsRedeemed"`
	Taxes             Money `json:"taxes"`
	Shipping          Money `json:"shipping"`
	Total             Money `json:"total"`
}

// Subtotal folds the line items into a subtotal. Non-positive lines contribute nothing.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		subtotal += it.Subtotal()
	}
	return subtotal
}

// Compute calculates cart totals given the provided inputs.
func Compute(in Input, p Policy) Summary {
	subtotal := Subtotal(in.Items)

	promo := in.PromotionDiscount
	if promo < 0 {
		promo = 0
	}
	if promo > subtotal {
		promo = subtotal
	}

	var points Money
	var redeemed int64
	if in.RedeemPoints && in.AvailablePoints > 0 && p.PointValue > 0 {
		points = PointsDiscount(subtotal, in.AvailablePoints, p)
		if points > subtotal-promo {
			points = subtotal - promo
		}
		redeemed = points / p.PointValue
		points = redeemed * p.PointValue
	}

	taxable := subtotal - promo - points
	if taxable < 0 {
		taxable = 0
	}
	tax := applyBps(taxable, p.TaxBps)
	shipping := ShippingFor(subtotal, p)

	return Summary{
		Subtotal:          subtotal,
		PromotionDiscount: promo,
		PointsDiscount:    points,
		PointsRedeemed:    redeemed,
		Taxes:             tax,
		Shipping:          shipping,
		Total:             taxable + tax + shipping,
	}
}

// PointsDiscount returns min(points × value, subtotal × cap).
func PointsDiscount(subtotal Money, availablePoints int64, p Policy) Money {
	if subtotal <= 0 || availablePoints <= 0 {
		return 0
	}
	worth := availablePoints * p.PointValue
	limit := (subtotal * Money(p.PointsCapBps)) / 10000
	if worth > limit {
		return limit
	}
	return worth
}

// ShippingFor waives shipping only when the subtotal is strictly above the threshold.
func ShippingFor(subtotal Money, p Policy) Money {
	if subtotal > p.FreeShippingOver {
		return 0
	}
	return p.ShippingFee
}

// applyBps multiplies amount by bps/10000 rounding half up.
func applyBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*Money(bps) + 5000) / 10000
}
