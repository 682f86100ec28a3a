package rules

import (
	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
)

// PeriodBonus evaluates one NP-slab bonus table against a period's running
// totals. history covers the period's stored months; current is this month's
// net, not yet persisted. The highest qualifying MinNet slab sets the
// potential; the positive-months gate decides qualification. Whether the
// potential is actually paid is the caller's concern (the apply flag).
func PeriodBonus(tmpl model.BonusTemplate, period string, history service.PeriodTotals, currentNet float64) *model.PeriodBonusLine {
	netToDate := history.NetValue + currentNet
	positive := history.PositiveMonths
	if currentNet > 0 {
		positive++
	}

	var potential float64
	for _, s := range tmpl.Slabs {
		if netToDate >= s.MinNet && s.Bonus > potential {
			potential = s.Bonus
		}
	}

	line := &model.PeriodBonusLine{
		Period:            period,
		NetToDate:         common.Round2(netToDate),
		PositiveMonths:    positive,
		MinPositiveMonths: tmpl.MinPositiveMonths,
		Potential:         common.Round2(potential),
	}
	line.Qualified = potential > 0 && positive >= tmpl.MinPositiveMonths
	if line.Qualified {
		line.Applied = line.Potential
	}
	return line
}

// Streak milestones.
const (
	HattrickStreak  = 3
	FiveMonthStreak = 5
)

// NextStreak advances a positive-growth streak. Growth at or above the
// threshold extends it; anything below resets to zero.
func NextStreak(prev int, growthPct, thresholdPct float64) int {
	if growthPct >= thresholdPct && growthPct > 0 {
		return prev + 1
	}
	return 0
}

// StreakBonus pays a milestone bonus in the month a streak reaches exactly
// three or exactly five. Paying only on the crossing month keeps reruns
// idempotent and long streaks from compounding.
func StreakBonus(streak int, w model.Weights) float64 {
	switch streak {
	case HattrickStreak:
		return common.Round2(w.HattrickBonus)
	case FiveMonthStreak:
		return common.Round2(w.FiveStreakBonus)
	}
	return 0
}
