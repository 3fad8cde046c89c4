package loyalty

import "time"

// Account is the loyalty ledger summary for a user.
type Account struct {
	UserID      string    `json:"userId"`
	Points      int64     `json:"points"`
	TotalSpent  int64     `json:"totalSpent"`
	OrdersCount int       `json:"ordersCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Standing recomputes the tier from the current points balance.
func (a Account) Standing() Standing {
	return Resolve(a.Points)
}

// Settlement is the change applied to an account when an order is placed.
type Settlement struct {
	Redeemed int64
	Bonus    int64
	Spent    int64
}

// Apply returns the account after the settlement. The balance never drops below zero.
func (a Account) Apply(s Settlement) Account {
	a.Points = a.Points - s.Redeemed + s.Bonus
	if a.Points < 0 {
		a.Points = 0
	}
	a.TotalSpent += s.Spent
	a.OrdersCount++
	return a
}
