// Package rules applies the configured slab tables: growth rate bands,
// meeting multipliers, penalties, and the bonus families.
package rules

import (
	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// RateFor returns the rate and band label for a growth percentage. Bands are
// inclusive-lower, exclusive-upper; the final band is unbounded above. A
// growth below every band returns (0, "") and scores nothing.
func RateFor(growthPct float64, slabs []model.RateSlab) (float64, string) {
	for _, s := range slabs {
		if growthPct < s.Min {
			continue
		}
		if s.Max != nil && growthPct >= *s.Max {
			continue
		}
		return s.Rate, s.Label
	}
	return 0, ""
}

// MultiplierFor returns the meetings multiplier and band label for a count.
// Counts below every band fall back to a neutral 1.0.
func MultiplierFor(count int, slabs []model.MeetingSlab) (float64, string) {
	for _, s := range slabs {
		if count < s.Min {
			continue
		}
		if s.Max != nil && count >= *s.Max {
			continue
		}
		return s.Multiplier, s.Label
	}
	return 1.0, ""
}

// ScoreInput is the per-RM slice of the window the rule engine needs.
type ScoreInput struct {
	NetValue      float64
	AUMStart      float64
	MeetingsCount int
}

// ScoreResult is the core incentive computation before penalties and
// bonuses.
type ScoreResult struct {
	GrowthPct          float64
	GrowthBand         string
	RateUsed           float64
	BaseIncentive      float64
	MeetingsMultiplier float64
	MeetingsBand       string
	ScaledIncentive    float64
	AUMStart           float64
}

// Score runs the slab pipeline for one RM. An AUM at or below zero forces
// growth to zero rather than dividing by it; the stored AUM is also zeroed so
// the record is self-consistent. The meetings multiplier scales gains only, a
// negative base is carried through unscaled.
func Score(in ScoreInput, doc *model.ConfigDocument) ScoreResult {
	res := ScoreResult{AUMStart: in.AUMStart}

	if in.AUMStart > 0 {
		res.GrowthPct = common.RoundSig(100*in.NetValue/in.AUMStart, 6)
	} else {
		res.GrowthPct = 0
		res.AUMStart = 0
	}

	res.RateUsed, res.GrowthBand = RateFor(res.GrowthPct, doc.RateSlabs)
	res.BaseIncentive = common.Round2(in.NetValue * res.RateUsed)

	res.MeetingsMultiplier, res.MeetingsBand = MultiplierFor(in.MeetingsCount, doc.MeetingSlabs)
	if res.BaseIncentive >= 0 {
		res.ScaledIncentive = common.Round2(res.BaseIncentive * res.MeetingsMultiplier)
	} else {
		res.ScaledIncentive = res.BaseIncentive
	}
	return res
}
