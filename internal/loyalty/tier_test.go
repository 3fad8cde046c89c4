package loyalty

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveThresholds(t *testing.T) {
	cases := []struct {
		points int64
		tier   Tier
	}{
		{0, Bronze},
		{499, Bronze},
		{500, Silver},
		{999, Silver},
		{1000, Gold},
		{1999, Gold},
		{2000, Platinum},
		{50_000, Platinum},
		{-10, Bronze},
	}
	for _, tc := range cases {
		require.Equal(t, tc.tier, TierFor(tc.points), "points=%d", tc.points)
	}
}

func TestResolveProgress(t *testing.T) {
	st := Resolve(500)
	require.Equal(t, Silver, st.Tier)
	require.Equal(t, 0.0, st.Progress)
	require.NotNil(t, st.NextTier)
	require.Equal(t, Gold, *st.NextTier)
	require.Equal(t, int64(500), st.PointsToNext)

	st = Resolve(999)
	require.Equal(t, Silver, st.Tier)
	require.InDelta(t, 99.8, st.Progress, 0.0001)
	require.Equal(t, int64(1), st.PointsToNext)

	st = Resolve(250)
	require.Equal(t, Bronze, st.Tier)
	require.InDelta(t, 50.0, st.Progress, 0.0001)
}

func TestResolveTopTierClamped(t *testing.T) {
	st := Resolve(7500)
	require.Equal(t, Platinum, st.Tier)
	require.Equal(t, 100.0, st.Progress)
	require.Nil(t, st.NextTier)
	require.Nil(t, st.NextMin)
	require.Zero(t, st.PointsToNext)
}

func TestAccountApply(t *testing.T) {
	acct := Account{UserID: "u1", Points: 600, TotalSpent: 10_000, OrdersCount: 2}
	next := acct.Apply(Settlement{Redeemed: 500, Bonus: 200, Spent: 7518})
	require.Equal(t, int64(300), next.Points)
	require.Equal(t, int64(17_518), next.TotalSpent)
	require.Equal(t, 3, next.OrdersCount)
	require.Equal(t, Bronze, next.Standing().Tier)

	drained := Account{Points: 10}.Apply(Settlement{Redeemed: 50})
	require.Zero(t, drained.Points)
}
