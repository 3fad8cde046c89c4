package loyalty

import "math"

// Tier is a named loyalty level derived from a points total.
type Tier string

const (
	Bronze   Tier = "bronze"
	Silver   Tier = "silver"
	Gold     Tier = "gold"
	Platinum Tier = "platinum"
)

type threshold struct {
	tier Tier
	min  int64
}

// thresholds must stay sorted ascending by min.
var thresholds = []threshold{
	{Bronze, 0},
	{Silver, 500},
	{Gold, 1000},
	{Platinum, 2000},
}

// Standing describes where a points total sits on the tier ladder.
type Standing struct {
	Tier         Tier    `json:"tier"`
	NextTier     *Tier   `json:"nextTier,omitempty"`
	CurrentMin   int64   `json:"currentMin"`
	NextMin      *int64  `json:"nextMin,omitempty"`
	PointsToNext int64   `json:"pointsToNext"`
	Progress     float64 `json:"progress"`
}

// Resolve maps points to a tier and the percentage progress toward the next one.
// Progress is rounded to one decimal place and is 100 at the top tier.
func Resolve(points int64) Standing {
	if points < 0 {
		points = 0
	}
	idx := 0
	for i, th := range thresholds {
		if points >= th.min {
			idx = i
		}
	}
	current := thresholds[idx]
	st := Standing{Tier: current.tier, CurrentMin: current.min}
	if idx == len(thresholds)-1 {
		st.Progress = 100
		return st
	}
	next := thresholds[idx+1]
	nextTier, nextMin := next.tier, next.min
	st.NextTier = &nextTier
	st.NextMin = &nextMin
	st.PointsToNext = next.min - points
	span := float64(next.min - current.min)
	progress := float64(points-current.min) / span * 100
	st.Progress = math.Round(progress*10) / 10
	return st
}

// TierFor returns only the tier for points.
func TierFor(points int64) Tier {
	return Resolve(points).Tier
}
