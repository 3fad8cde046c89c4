package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		record Record
		want   Label
	}{
		{"unavailable with stock", Record{StockLevel: 50, LowStockThreshold: 5, IsAvailable: false}, OutOfStock},
		{"available but empty", Record{StockLevel: 0, LowStockThreshold: 5, IsAvailable: true}, OutOfStock},
		{"at threshold", Record{StockLevel: 5, LowStockThreshold: 5, IsAvailable: true}, LowStock},
		{"just above zero", Record{StockLevel: 1, LowStockThreshold: 5, IsAvailable: true}, LowStock},
		{"above threshold", Record{StockLevel: 6, LowStockThreshold: 5, IsAvailable: true}, Available},
		{"zero threshold", Record{StockLevel: 1, LowStockThreshold: 0, IsAvailable: true}, Available},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.record))
		})
	}
}

func TestCanAddToCart(t *testing.T) {
	require.False(t, OutOfStock.CanAddToCart())
	require.True(t, LowStock.CanAddToCart())
	require.True(t, Available.CanAddToCart())
}

func TestCovers(t *testing.T) {
	r := Record{StockLevel: 3, LowStockThreshold: 5, IsAvailable: true}
	require.True(t, r.Covers(3))
	require.False(t, r.Covers(4))
	r.IsAvailable = false
	require.False(t, r.Covers(1))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Record{StockLevel: 0, LowStockThreshold: 0}.Validate())
	require.ErrorIs(t, Record{StockLevel: -1}.Validate(), ErrInvalidRecord)
	require.ErrorIs(t, Record{LowStockThreshold: -1}.Validate(), ErrInvalidRecord)
}
