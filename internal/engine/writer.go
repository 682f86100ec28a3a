package engine

import (
	"github.com/iwell/incentive-engine/internal/aggregate"
	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/rules"
	"github.com/iwell/incentive-engine/internal/window"
)

// Audit modes.
const (
	AuditModeCompact = "compact"
	AuditModeFull    = "full"
)

// compactCategoryLimit caps the category breakdown in compact audit mode.
const compactCategoryLimit = 3

// computation is everything the pipeline derived for one RM and window
// before it is shaped into output rows.
type computation struct {
	totals    *aggregate.RMTotals
	score     rules.ScoreResult
	meetings  int
	debtBonus float64
	penalty   float64
	streak    int
	streakBon float64
	periodic  *model.PeriodicBonus
	eligible  bool
}

// buildRecord shapes a computation into the leaderboard row, stamped with the
// config identity so any row can be traced back to the exact rule table that
// produced it.
func buildRecord(scorer string, c *computation, snap model.ConfigSnapshot) *model.MonthlyRecord {
	final := c.score.ScaledIncentive + c.debtBonus + c.streakBon - c.penalty
	if c.periodic != nil && snap.Doc.Options.PeriodicBonusEnable && snap.Doc.Options.PeriodicBonusApply {
		if c.periodic.Quarterly != nil {
			final += c.periodic.Quarterly.Applied
		}
		if c.periodic.Annual != nil {
			final += c.periodic.Annual.Applied
		}
	}

	return &model.MonthlyRecord{
		Scorer: scorer,
		RMID:   c.totals.RMID,
		RMName: c.totals.RMName,
		Month:  c.totals.Month,

		AUMStart:     common.Round2(c.score.AUMStart),
		Additions:    common.Round2(c.totals.Additions),
		Subtractions: common.Round2(c.totals.Subtractions),
		NetValue:     common.Round2(c.totals.NetValue),

		GrowthPct:  c.score.GrowthPct,
		GrowthBand: c.score.GrowthBand,
		RateUsed:   c.score.RateUsed,

		BaseIncentive:      c.score.BaseIncentive,
		MeetingsCount:      c.meetings,
		MeetingsMultiplier: c.score.MeetingsMultiplier,
		MeetingsBand:       c.score.MeetingsBand,
		DebtBonus:          c.debtBonus,
		PenaltyPoints:      c.penalty,
		StreakLength:       c.streak,
		StreakBonus:        c.streakBon,
		PeriodicBonus:      c.periodic,
		FinalIncentive:     common.Round2(final),

		Eligible:            c.eligible,
		ConfigHash:          snap.Hash,
		ConfigSchemaVersion: snap.Doc.SchemaVersion,
	}
}

// buildAudit shapes the same computation into its audit companion. Compact
// mode keeps the top categories by absolute sum; a non-zero excluded bucket
// always survives the cut so zero-weighted flows stay visible.
func buildAudit(scorer string, c *computation, w window.Window, snap model.ConfigSnapshot) *model.AuditRecord {
	byCategory := aggregate.CategoryBreakdown(c.totals)
	mode := snap.Doc.Options.AuditMode
	if mode == "" {
		mode = AuditModeCompact
	}
	if mode == AuditModeCompact {
		byCategory = compactCategories(byCategory)
	}

	additions := make(map[string]float64, len(c.totals.AdditionsByOp))
	for op, sum := range c.totals.AdditionsByOp {
		additions[op] = common.Round2(sum)
	}
	subtractions := make(map[string]float64, len(c.totals.SubtractionsByOp))
	for op, sum := range c.totals.SubtractionsByOp {
		subtractions[op] = common.Round2(sum)
	}

	return &model.AuditRecord{
		Scorer: scorer,
		RMID:   c.totals.RMID,
		RMName: c.totals.RMName,
		Month:  c.totals.Month,

		WindowStart: w.Start,
		WindowEnd:   w.End,

		ByOperation:  aggregate.OperationBreakdown(c.totals),
		ByCategory:   byCategory,
		Additions:    additions,
		Subtractions: subtractions,
		ExcludedSum:  common.Round2(c.totals.ExcludedAdditions),

		GrowthPct: c.score.GrowthPct,
		RateUsed:  c.score.RateUsed,

		AuditMode:           mode,
		ConfigHash:          snap.Hash,
		ConfigSchemaVersion: snap.Doc.SchemaVersion,
	}
}

// compactCategories keeps the top non-zero categories. The excluded bucket is
// retained whenever non-zero, even if it did not make the cut.
func compactCategories(full []model.CategoryTotal) []model.CategoryTotal {
	out := make([]model.CategoryTotal, 0, compactCategoryLimit+1)
	var excluded *model.CategoryTotal
	for i := range full {
		if full[i].Category == model.ExcludedCategoryBucket && full[i].Sum != 0 {
			excluded = &full[i]
		}
	}

	for i := range full {
		if len(out) >= compactCategoryLimit {
			break
		}
		if full[i].Sum == 0 {
			continue
		}
		out = append(out, full[i])
	}

	if excluded != nil {
		found := false
		for _, c := range out {
			if c.Category == model.ExcludedCategoryBucket {
				found = true
				break
			}
		}
		if !found {
			out = append(out, *excluded)
		}
	}
	return out
}
