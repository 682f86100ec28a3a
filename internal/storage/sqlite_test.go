package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func TestMigrateIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.Migrate(context.Background()))
}

func TestRawRecordsRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	date := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	records := []model.RawRecord{
		{
			ID:              "txn-1",
			Operation:       model.OpPurchase,
			OwnerName:       "Asha Rao",
			Category:        "equity",
			Amount:          100_000,
			Date:            date,
			ReconcileStatus: "RECONCILED",
		},
		{
			ID:        "txn-2",
			Operation: model.OpPurchase,
			OwnerName: "Asha Rao",
			Category:  "hybrid",
			// Parent dated outside any window; fractions carry their own
			// validation timestamps.
			Date: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
			Fractions: []model.Fraction{
				{ID: "f-1", Amount: 10_000, ReconcileStatus: "RECONCILED",
					Validations: []model.Validation{{Status: "APPROVED", ValidatedAt: date}}},
			},
		},
		{
			ID:        "txn-3",
			Operation: model.OpRedemption,
			OwnerName: "Asha Rao",
			Amount:    50_000,
			Date:      date,
		},
	}
	require.NoError(t, store.SaveRawRecords(ctx, records))

	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	purchases, err := store.RawRecords(ctx, model.OpPurchase, start, end)
	require.NoError(t, err)
	require.Len(t, purchases, 2, "in-window record plus fraction-bearing record")

	var fractioned *model.RawRecord
	for i := range purchases {
		if purchases[i].ID == "txn-2" {
			fractioned = &purchases[i]
		}
	}
	require.NotNil(t, fractioned)
	require.Len(t, fractioned.Fractions, 1)
	assert.Equal(t, "f-1", fractioned.Fractions[0].ID)
	assert.Equal(t, "APPROVED", fractioned.Fractions[0].Validations[0].Status)

	redemptions, err := store.RawRecords(ctx, model.OpRedemption, start, end)
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
}

func TestAUMAndMeetings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveAUM(ctx, "2026-03", "Asha Rao", 50_000_000))

	amount, found, err := store.AUMStart(ctx, "Asha Rao", "2026-03")
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 50_000_000, amount, 1e-9)

	_, found, err = store.AUMStart(ctx, "Asha Rao", "2026-04")
	require.NoError(t, err)
	assert.False(t, found)

	for d := 1; d <= 8; d++ {
		require.NoError(t, store.SaveMeeting(ctx, "Asha Rao",
			time.Date(2026, time.March, d, 11, 0, 0, 0, time.UTC)))
	}
	require.NoError(t, store.SaveMeeting(ctx, "Asha Rao",
		time.Date(2026, time.April, 1, 11, 0, 0, 0, time.UTC)))

	counts, err := store.MeetingCounts(ctx,
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 8, counts["Asha Rao"])
}

func TestEmployeeLookups(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	since := time.Date(2026, time.April, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveEmployee(ctx, &model.Employee{
		ID: "rm-1", Name: "Asha Rao", Active: false, InactiveSince: &since,
	}))
	require.NoError(t, store.SaveAlias(ctx, "A. Rao", "rm-1"))

	byName, err := store.EmployeeByName(ctx, "Asha Rao")
	require.NoError(t, err)
	assert.Equal(t, "rm-1", byName.ID)
	assert.False(t, byName.Active)
	require.NotNil(t, byName.InactiveSince)
	assert.True(t, byName.InactiveSince.Equal(since))

	byAlias, err := store.EmployeeByAlias(ctx, "A. Rao")
	require.NoError(t, err)
	assert.Equal(t, "rm-1", byAlias.ID)

	byID, err := store.EmployeeByID(ctx, "rm-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", byID.Name)

	_, err = store.EmployeeByName(ctx, "Nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.EmployeeByAlias(ctx, "Nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
