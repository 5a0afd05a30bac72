package backend

import (
	"fmt"
	"math"
	"math/rand/v2"
)

func defaultRandom() float64 {
	return rand.Float64()
}

// MockDashboardStats generates plausible dashboard numbers from rnd, a source
// of values in [0,1).
func MockDashboardStats(rnd func() float64) DashboardStats {
	baseDetections := 2500 + math.Floor(rnd()*500)
	baseAccuracy := 82 + rnd()*8
	baseTime := 1.0 + rnd()*0.5
	baseSuccess := 94 + rnd()*4

	return DashboardStats{
		TotalDetections: StatValue{
			Value:      baseDetections,
			Change:     fmt.Sprintf("+%.1f%%", rnd()*20+5),
			ChangeType: ChangePositive,
		},
		AverageAccuracy: StatValue{
			Value:      round1(baseAccuracy),
			Change:     fmt.Sprintf("+%.1f%%", rnd()*3+0.5),
			ChangeType: ChangePositive,
		},
		AverageTime: StatValue{
			Value:      round1(baseTime),
			Change:     fmt.Sprintf("-%.1fs", rnd()*0.5+0.1),
			ChangeType: ChangePositive,
		},
		SuccessRate: StatValue{
			Value:      round1(baseSuccess),
			Change:     fmt.Sprintf("+%.1f%%", rnd()*2+0.5),
			ChangeType: ChangePositive,
		},
		Source: SourceFallback,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
