package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
	"github.com/iwell/incentive-engine/internal/window"
)

type fakeIngestStorage struct {
	service.Storage
	records   map[model.Operation][]model.RawRecord
	employees map[string]*model.Employee
	aliases   map[string]*model.Employee
}

func (f *fakeIngestStorage) RawRecords(_ context.Context, op model.Operation, _, _ time.Time) ([]model.RawRecord, error) {
	return f.records[op], nil
}

func (f *fakeIngestStorage) EmployeeByName(_ context.Context, name string) (*model.Employee, error) {
	if emp, ok := f.employees[name]; ok {
		return emp, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeIngestStorage) EmployeeByAlias(_ context.Context, alias string) (*model.Employee, error) {
	if emp, ok := f.aliases[alias]; ok {
		return emp, nil
	}
	return nil, common.ErrNotFound
}

func testWindow() window.Window {
	return window.MonthWindow(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC))
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 10, 0, 0, 0, time.UTC)
}

func approved(d int) []model.Validation {
	return []model.Validation{{Status: "APPROVED", ValidatedAt: day(d)}}
}

func TestWindowExpandsFractionsIndependently(t *testing.T) {
	storage := &fakeIngestStorage{
		employees: map[string]*model.Employee{
			"Asha Rao": {ID: "rm-1", Name: "Asha Rao", Active: true},
		},
		records: map[model.Operation][]model.RawRecord{
			model.OpPurchase: {{
				ID:        "txn-1",
				Operation: model.OpPurchase,
				OwnerName: "Asha Rao",
				Category:  "equity",
				Fractions: []model.Fraction{
					{ID: "f-1", Amount: 10_000, ReconcileStatus: "RECONCILED", Validations: approved(5)},
					// Approved outside the window: must not score.
					{ID: "f-2", Amount: 20_000, ReconcileStatus: "RECONCILED", Validations: []model.Validation{
						{Status: "APPROVED", ValidatedAt: time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)},
					}},
					// Unreconciled: must not score.
					{ID: "f-3", Amount: 30_000, ReconcileStatus: "PENDING", Validations: approved(6)},
					// Reconciled-with-minor passes the gate.
					{ID: "f-4", Amount: 40_000, ReconcileStatus: "reconciled_with_minor", Validations: approved(7)},
				},
			}},
		},
	}

	in := New(storage, nil)
	res, err := in.Window(context.Background(), testWindow(), model.CategoryRules{})
	require.NoError(t, err)

	require.Len(t, res.Units, 2)
	assert.Equal(t, "f-1", res.Units[0].LineID)
	assert.Equal(t, "f-4", res.Units[1].LineID)
	assert.Equal(t, "rm-1", res.Units[0].RMID)
	assert.Equal(t, "2026-03", res.Units[0].Month)
	assert.Equal(t, 1, res.ExcludedWindow)
	assert.Equal(t, 1, res.ExcludedReconcile)
}

func TestWindowFractionlessRecordUsesOwnDate(t *testing.T) {
	storage := &fakeIngestStorage{
		employees: map[string]*model.Employee{
			"Asha Rao": {ID: "rm-1", Name: "Asha Rao", Active: true},
		},
		records: map[model.Operation][]model.RawRecord{
			model.OpRedemption: {
				{ID: "r-1", Operation: model.OpRedemption, OwnerName: "Asha Rao",
					Amount: 5_000, Date: day(10), ReconcileStatus: "RECONCILED"},
				{ID: "r-2", Operation: model.OpRedemption, OwnerName: "Asha Rao",
					Amount: 9_000, Date: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
					ReconcileStatus: "RECONCILED"},
			},
		},
	}

	in := New(storage, nil)
	res, err := in.Window(context.Background(), testWindow(), model.CategoryRules{})
	require.NoError(t, err)

	require.Len(t, res.Units, 1)
	assert.Equal(t, "r-1", res.Units[0].SourceID)
	assert.Equal(t, 1, res.ExcludedWindow)
}

func TestWindowIdentityFallbackAndDrop(t *testing.T) {
	storage := &fakeIngestStorage{
		employees: map[string]*model.Employee{},
		aliases: map[string]*model.Employee{
			"A. Rao": {ID: "rm-1", Name: "Asha Rao", Active: true},
		},
		records: map[model.Operation][]model.RawRecord{
			model.OpPurchase: {
				{ID: "p-1", Operation: model.OpPurchase, OwnerName: "A. Rao",
					Amount: 1_000, Date: day(3), ReconcileStatus: "RECONCILED"},
				{ID: "p-2", Operation: model.OpPurchase, OwnerName: "Nobody Known",
					Amount: 2_000, Date: day(4), ReconcileStatus: "RECONCILED"},
			},
		},
	}

	in := New(storage, nil)
	res, err := in.Window(context.Background(), testWindow(), model.CategoryRules{})
	require.NoError(t, err)

	require.Len(t, res.Units, 1)
	assert.Equal(t, "rm-1", res.Units[0].RMID)
	assert.Equal(t, 1, res.UnresolvedOwners)
}

func TestWindowBlacklistFairness(t *testing.T) {
	rules := model.CategoryRules{
		Blacklisted: []string{"liquid"},
		MatchMode:   "substring",
		Scope:       []string{"category", "sub_category"},
	}
	storage := &fakeIngestStorage{
		employees: map[string]*model.Employee{
			"Asha Rao": {ID: "rm-1", Name: "Asha Rao", Active: true},
		},
		records: map[model.Operation][]model.RawRecord{
			model.OpPurchase: {
				{ID: "p-1", Operation: model.OpPurchase, OwnerName: "Asha Rao",
					Category: "Liquid Fund", Amount: 1_000, Date: day(3), ReconcileStatus: "RECONCILED"},
			},
			model.OpRedemption: {
				{ID: "r-1", Operation: model.OpRedemption, OwnerName: "Asha Rao",
					Category: "Liquid Fund", Amount: 500, Date: day(4), ReconcileStatus: "RECONCILED"},
			},
		},
	}

	in := New(storage, nil)
	res, err := in.Window(context.Background(), testWindow(), rules)
	require.NoError(t, err)

	// The blacklisted purchase survives flagged; the blacklisted redemption
	// is removed outright so it cannot hurt the RM.
	require.Len(t, res.Units, 1)
	assert.Equal(t, model.OpPurchase, res.Units[0].Operation)
	assert.True(t, res.Units[0].Blacklisted)
	assert.Equal(t, 1, res.ExcludedBlacklist)
}

func TestBlacklistedMatchModes(t *testing.T) {
	tests := []struct {
		name     string
		category string
		sub      string
		rules    model.CategoryRules
		want     bool
	}{
		{
			name:     "substring hit on category",
			category: "Ultra Liquid Growth",
			rules:    model.CategoryRules{Blacklisted: []string{"liquid"}, MatchMode: "substring", Scope: []string{"category"}},
			want:     true,
		},
		{
			name:     "exact miss on partial",
			category: "Ultra Liquid Growth",
			rules:    model.CategoryRules{Blacklisted: []string{"liquid"}, MatchMode: "exact", Scope: []string{"category"}},
			want:     false,
		},
		{
			name:  "exact hit case-insensitive",
			sub:   "LIQUID",
			rules: model.CategoryRules{Blacklisted: []string{"liquid"}, MatchMode: "exact", Scope: []string{"sub_category"}},
			want:  true,
		},
		{
			name:     "scope excludes sub_category",
			category: "equity",
			sub:      "liquid",
			rules:    model.CategoryRules{Blacklisted: []string{"liquid"}, MatchMode: "substring", Scope: []string{"category"}},
			want:     false,
		},
		{
			name:     "empty blacklist",
			category: "liquid",
			rules:    model.CategoryRules{MatchMode: "substring"},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Blacklisted(tt.category, tt.sub, tt.rules))
		})
	}
}
