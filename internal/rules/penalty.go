package rules

import (
	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// Penalty interpretation modes.
const (
	PenaltyModeFlat        = "flat"
	PenaltyModeTrailScaled = "trail_scaled"
)

// Penalty returns the deduction for a month. A penalty fires only when the
// weighted net is negative; the growth percentage then selects the slab
// (first slab whose MaxGrowthPct bounds it from above, slabs ascending).
//
// In flat mode the slab's FlatPoints is the deduction. In trail-scaled mode
// the deduction is TrailPct of the monthly trail revenue on the starting AUM,
// capped at CapPoints.
func Penalty(netValue, growthPct, aumStart float64, cfg model.PenaltyConfig, annualTrailRatePct float64) float64 {
	if !cfg.Enable || netValue >= 0 {
		return 0
	}

	slab, ok := penaltySlab(growthPct, cfg.Slabs)
	if !ok {
		return 0
	}

	switch cfg.Mode {
	case PenaltyModeTrailScaled:
		trail := MonthlyTrail(aumStart, annualTrailRatePct)
		points := trail * slab.TrailPct / 100
		if slab.CapPoints > 0 && points > slab.CapPoints {
			points = slab.CapPoints
		}
		return common.Round2(points)
	default:
		return common.Round2(slab.FlatPoints)
	}
}

// penaltySlab picks the first slab whose MaxGrowthPct is >= growthPct.
func penaltySlab(growthPct float64, slabs []model.PenaltySlab) (model.PenaltySlab, bool) {
	for _, s := range slabs {
		if growthPct <= s.MaxGrowthPct {
			return s, true
		}
	}
	return model.PenaltySlab{}, false
}

// MonthlyTrail is one month's trail revenue on an AUM at an annual
// percentage rate.
func MonthlyTrail(aum, annualRatePct float64) float64 {
	if aum <= 0 || annualRatePct <= 0 {
		return 0
	}
	return aum * annualRatePct / 100 / 12
}
