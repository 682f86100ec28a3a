package config

import (
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/window"
)

// SchemaVersion is the rule-table layout version stamped onto every config
// document and every derived record.
const SchemaVersion = "2026-08.r1"

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// defaultRateSlabs are the growth-percentage bands shared by all scorers
// until an operator edits them. Bands are contiguous, inclusive-lower /
// exclusive-upper, with an unbounded top band.
func defaultRateSlabs() []model.RateSlab {
	return []model.RateSlab{
		{Min: 0.0, Max: fptr(0.25), Rate: 0.0006, Label: "0-<0.25%"},
		{Min: 0.25, Max: fptr(0.5), Rate: 0.0009, Label: "0.25-<0.5%"},
		{Min: 0.5, Max: fptr(0.75), Rate: 0.00115, Label: "0.5-<0.75%"},
		{Min: 0.75, Max: fptr(1.25), Rate: 0.00135, Label: "0.75-<1.25%"},
		{Min: 1.25, Max: fptr(1.5), Rate: 0.00145, Label: "1.25-<1.5%"},
		{Min: 1.5, Max: fptr(2.0), Rate: 0.00148, Label: "1.5-<2%"},
		{Min: 2.0, Max: nil, Rate: 0.0015, Label: ">=2%"},
	}
}

func defaultMeetingSlabs() []model.MeetingSlab {
	return []model.MeetingSlab{
		{Min: 0, Max: iptr(6), Multiplier: 1.0, Label: "0-5"},
		{Min: 6, Max: iptr(12), Multiplier: 1.05, Label: "6-11"},
		{Min: 12, Max: iptr(18), Multiplier: 1.075, Label: "12-17"},
		{Min: 18, Max: nil, Multiplier: 1.10, Label: "18+"},
	}
}

func defaultWeights() model.Weights {
	return model.Weights{
		Purchase:   1.0,
		Redemption: 1.0,
		SwitchIn:   1.2,
		SwitchOut:  1.2,
		COBIn:      0.5,
		COBOut:     1.2,
		DebtBonus: model.DebtBonusConfig{
			Enable:               false,
			BonusPct:             20,
			MaxDebtRatioPct:      75,
			Categories:           []string{"debt"},
			ExcludeFromDebtBonus: true,
		},
		HattrickBonus:      500,
		FiveStreakBonus:    500,
		StreakThresholdPct: 0.1,
	}
}

func defaultPenalty() model.PenaltyConfig {
	return model.PenaltyConfig{
		Enable: true,
		Mode:   "flat",
		Slabs: []model.PenaltySlab{
			// Deep negative growth.
			{MaxGrowthPct: -1.0, FlatPoints: 5000, TrailPct: 0.5, CapPoints: 5000},
			// Moderate negative growth.
			{MaxGrowthPct: -0.5, FlatPoints: 2500, TrailPct: 0.5, CapPoints: 2500},
			// Slight negative growth carries no penalty.
			{MaxGrowthPct: 0.0, FlatPoints: 0, TrailPct: 0, CapPoints: 0},
		},
	}
}

func defaultQtrBonus() model.BonusTemplate {
	return model.BonusTemplate{
		MinPositiveMonths: 2,
		Slabs: []model.BonusSlab{
			{MinNet: 0, Bonus: 0},
			{MinNet: 1_000_000, Bonus: 0},
			{MinNet: 2_500_000, Bonus: 0},
			{MinNet: 5_000_000, Bonus: 0},
		},
	}
}

func defaultAnnualBonus() model.BonusTemplate {
	return model.BonusTemplate{
		MinPositiveMonths: 6,
		Slabs: []model.BonusSlab{
			{MinNet: 0, Bonus: 0},
			{MinNet: 3_000_000, Bonus: 0},
			{MinNet: 7_500_000, Bonus: 0},
			{MinNet: 12_000_000, Bonus: 0},
		},
	}
}

// DefaultDocument returns the bootstrap rule table for a scorer. The three
// scorers share one engine; only their category rules differ out of the box.
func DefaultDocument(scorer string) model.ConfigDocument {
	doc := model.ConfigDocument{
		Scorer:        scorer,
		SchemaVersion: SchemaVersion,
		Status:        "active",
		Options: model.Options{
			RangeMode:                   window.RangeLast5,
			FYMode:                      window.FYModeApril,
			AuditMode:                   "compact",
			InactivityGraceMonths:       6,
			InactiveAction:              "skip",
			InactiveIneligibilityMonths: 6,
			PeriodicBonusEnable:         false,
			PeriodicBonusApply:          true,
			ApplyStreakBonus:            true,
			AnnualTrailRatePct:          0.8,
		},
		RateSlabs:    defaultRateSlabs(),
		MeetingSlabs: defaultMeetingSlabs(),
		Weights:      defaultWeights(),
		CategoryRules: model.CategoryRules{
			Blacklisted:        []string{"liquid", "overnight"},
			MatchMode:          "substring",
			Scope:              []string{"category", "sub_category"},
			ZeroWeightPurchase: true,
			ZeroWeightSwitchIn: true,
		},
		Penalty:     defaultPenalty(),
		QtrBonus:    defaultQtrBonus(),
		AnnualBonus: defaultAnnualBonus(),
	}

	switch scorer {
	case model.ScorerInsurance:
		// Insurance has no liquid-fund concept; nothing is blacklisted and
		// switch legs do not occur.
		doc.CategoryRules.Blacklisted = nil
		doc.Weights.SwitchIn = 1.0
		doc.Weights.SwitchOut = 1.0
	case model.ScorerSIP:
		// SIP flows are registration-driven; COB legs do not apply.
		doc.Weights.COBIn = 0
		doc.Weights.COBOut = 0
	}

	return doc
}
