package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwell/incentive-engine/internal/aggregate"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/rules"
)

func TestCompactCategoriesKeepsExcludedBucket(t *testing.T) {
	full := []model.CategoryTotal{
		{Category: "equity", Sum: 900_000},
		{Category: "hybrid", Sum: 500_000},
		{Category: "elss", Sum: 300_000},
		{Category: "gilt", Sum: 100_000},
		{Category: model.ExcludedCategoryBucket, Sum: 50_000},
	}

	got := compactCategories(full)
	require.Len(t, got, 4, "top three plus the excluded bucket")
	assert.Equal(t, "equity", got[0].Category)
	assert.Equal(t, model.ExcludedCategoryBucket, got[3].Category)
}

func TestCompactCategoriesSkipsZeroLines(t *testing.T) {
	full := []model.CategoryTotal{
		{Category: "equity", Sum: 900_000},
		{Category: "hybrid", Sum: 0},
		{Category: model.ExcludedCategoryBucket, Sum: 0},
	}

	got := compactCategories(full)
	require.Len(t, got, 1)
	assert.Equal(t, "equity", got[0].Category)
}

func TestBuildRecordAppliesPeriodicOnlyWhenConfigured(t *testing.T) {
	totals := &aggregate.RMTotals{RMID: "rm-1", RMName: "Asha Rao", Month: "2026-06", NetValue: 1_000_000}
	c := &computation{
		totals: totals,
		score:  rules.ScoreResult{ScaledIncentive: 1000},
		periodic: &model.PeriodicBonus{
			Quarterly: &model.PeriodBonusLine{Period: "Q1 FY 2026-27", Qualified: true, Applied: 2500},
		},
		eligible: true,
	}

	snap := model.ConfigSnapshot{Hash: "h1"}
	snap.Doc.SchemaVersion = "2026-08.r1"
	snap.Doc.Options.PeriodicBonusEnable = true
	snap.Doc.Options.PeriodicBonusApply = true

	rec := buildRecord("sip", c, snap)
	assert.InDelta(t, 3500, rec.FinalIncentive, 1e-9)
	assert.Equal(t, "h1", rec.ConfigHash)
	assert.Equal(t, "2026-08.r1", rec.ConfigSchemaVersion)

	// Reported but not applied.
	snap.Doc.Options.PeriodicBonusApply = false
	rec = buildRecord("sip", c, snap)
	assert.InDelta(t, 1000, rec.FinalIncentive, 1e-9)
	require.NotNil(t, rec.PeriodicBonus)
	assert.InDelta(t, 2500, rec.PeriodicBonus.Quarterly.Applied, 1e-9)

	// Disabled bonuses are still reported, never paid.
	snap.Doc.Options.PeriodicBonusEnable = false
	snap.Doc.Options.PeriodicBonusApply = true
	rec = buildRecord("sip", c, snap)
	assert.InDelta(t, 1000, rec.FinalIncentive, 1e-9)
	require.NotNil(t, rec.PeriodicBonus)
}
