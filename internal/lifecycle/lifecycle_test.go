package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwell/incentive-engine/internal/model"
)

func activeEmp() *model.Employee {
	return &model.Employee{ID: "rm-1", Name: "Asha Rao", Active: true}
}

func inactiveEmp(since time.Time) *model.Employee {
	return &model.Employee{ID: "rm-1", Name: "Asha Rao", Active: false, InactiveSince: &since}
}

func TestGateMutableWhileYoungAndActive(t *testing.T) {
	m := NewManager(6, 6)
	now := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)

	d := m.Gate("2026-03", now, activeEmp())
	assert.Equal(t, model.StateMutable, d.State)
	assert.True(t, d.FullyWritable)
}

func TestGateFreezesAfterGrace(t *testing.T) {
	m := NewManager(6, 6)

	// March 2026 + 6 months grace freezes on 1 October 2026.
	tests := []struct {
		now  time.Time
		want model.LifecycleState
	}{
		{time.Date(2026, time.September, 30, 23, 0, 0, 0, time.UTC), model.StateMutable},
		{time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), model.StateFrozen},
		{time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC), model.StateFrozen},
	}

	for _, tt := range tests {
		d := m.Gate("2026-03", tt.now, activeEmp())
		assert.Equal(t, tt.want, d.State, "at %s", tt.now)
	}
}

func TestGateSemiFrozenStartsMonthAfterInactivity(t *testing.T) {
	m := NewManager(6, 6)
	emp := inactiveEmp(time.Date(2026, time.April, 17, 0, 0, 0, 0, time.UTC))

	// Still mutable within the inactivity month itself.
	d := m.Gate("2026-03", time.Date(2026, time.April, 25, 0, 0, 0, 0, time.UTC), emp)
	assert.Equal(t, model.StateMutable, d.State)

	d = m.Gate("2026-03", time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC), emp)
	assert.Equal(t, model.StateSemiFrozen, d.State)
	assert.False(t, d.FullyWritable)
	assert.Contains(t, d.WritableFields, "eligible")
}

func TestGateFrozenWinsOverSemiFrozen(t *testing.T) {
	m := NewManager(6, 6)
	emp := inactiveEmp(time.Date(2026, time.April, 17, 0, 0, 0, 0, time.UTC))

	d := m.Gate("2026-03", time.Date(2026, time.November, 2, 0, 0, 0, 0, time.UTC), emp)
	assert.Equal(t, model.StateFrozen, d.State)
	assert.Empty(t, d.WritableFields)
}

func TestGateMonotonic(t *testing.T) {
	m := NewManager(3, 3)
	emp := inactiveEmp(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC))

	lastRank := -1
	for month := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC); month.Year() < 2027; month = month.AddDate(0, 1, 0) {
		d := m.Gate("2026-03", month, emp)
		require.GreaterOrEqual(t, d.State.Rank(), lastRank, "state regressed at %s", month)
		lastRank = d.State.Rank()
	}
}

func TestEligibleWindow(t *testing.T) {
	m := NewManager(6, 6)
	emp := inactiveEmp(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, m.Eligible("2026-04", emp), "inactivity month itself")
	assert.True(t, m.Eligible("2026-09", emp), "last month inside grace")
	assert.False(t, m.Eligible("2026-10", emp), "grace exhausted")
	assert.False(t, m.Eligible("2026-03", emp), "pre-inactivity rerun")
	assert.True(t, m.Eligible("2020-01", activeEmp()), "active always eligible")
}

func TestEligibleWindowShorterThanGrace(t *testing.T) {
	m := NewManager(6, 3)
	emp := inactiveEmp(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, m.Eligible("2026-06", emp), "last month inside window")
	assert.False(t, m.Eligible("2026-07", emp), "window exhausted before freeze")
}

func TestMergeSemiFrozenKeepsNumbers(t *testing.T) {
	stored := &model.MonthlyRecord{
		Scorer: "sip", RMID: "rm-1", Month: "2026-03",
		FinalIncentive: 422.63,
		Eligible:       true,
		LifecycleState: model.StateMutable,
	}
	computed := &model.MonthlyRecord{
		Scorer: "sip", RMID: "rm-1", Month: "2026-03",
		FinalIncentive: 999,
		Eligible:       false,
	}

	merged, writable := Merge(stored, computed, Decision{
		State:          model.StateSemiFrozen,
		WritableFields: []string{"eligible", "lifecycle_state"},
	})
	require.True(t, writable)
	assert.InDelta(t, 422.63, merged.FinalIncentive, 1e-9, "numeric fields untouched")
	assert.False(t, merged.Eligible, "eligibility update applied")
	assert.Equal(t, model.StateSemiFrozen, merged.LifecycleState)
}

func TestMergeFrozenIsNoOp(t *testing.T) {
	stored := &model.MonthlyRecord{FinalIncentive: 100, LifecycleState: model.StateFrozen}
	computed := &model.MonthlyRecord{FinalIncentive: 500}

	merged, writable := Merge(stored, computed, Decision{State: model.StateFrozen})
	assert.False(t, writable)
	assert.InDelta(t, 100, merged.FinalIncentive, 1e-9)
}

func TestMergeFirstWrite(t *testing.T) {
	computed := &model.MonthlyRecord{FinalIncentive: 500}

	merged, writable := Merge(nil, computed, Decision{State: model.StateMutable, FullyWritable: true})
	require.True(t, writable)
	assert.Equal(t, model.StateMutable, merged.LifecycleState)

	// A first computation against an already-frozen month writes nothing.
	_, writable = Merge(nil, computed, Decision{State: model.StateFrozen})
	assert.False(t, writable)
}
