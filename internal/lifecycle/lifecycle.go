// Package lifecycle decides how much of a stored monthly record a rerun may
// still change.
package lifecycle

import (
	"time"

	"github.com/iwell/incentive-engine/internal/model"
)

// Eligibility fields stay writable in the semi-frozen state so a late HR
// update can still correct them.
var eligibilityFields = []string{"eligible", "lifecycle_state"}

// Decision is the outcome of gating one record.
type Decision struct {
	State          model.LifecycleState
	WritableFields []string
	FullyWritable  bool
}

// Manager computes lifecycle states from record age and employee status.
type Manager struct {
	graceMonths       int
	eligibilityMonths int
}

// NewManager creates a lifecycle manager. graceMonths controls when records
// freeze; eligibilityMonths bounds how long an inactive employee keeps
// earning, defaulting to the grace period when unset.
func NewManager(graceMonths, eligibilityMonths int) *Manager {
	if graceMonths <= 0 {
		graceMonths = 6
	}
	if eligibilityMonths <= 0 {
		eligibilityMonths = graceMonths
	}
	return &Manager{graceMonths: graceMonths, eligibilityMonths: eligibilityMonths}
}

// Gate classifies a record month at a point in time. States only move
// forward:
//
//	mutable     -> record younger than the grace period, employee active
//	semi_frozen -> employee inactive, record still younger than the grace
//	               period; takes effect the first of the month after the
//	               inactivity date
//	frozen      -> record age reached the grace period; absorbing
func (m *Manager) Gate(recordMonth string, now time.Time, emp *model.Employee) Decision {
	state := model.StateMutable

	if freezeAt, ok := freezeTime(recordMonth, m.graceMonths); ok && !now.Before(freezeAt) {
		state = model.StateFrozen
	} else if emp != nil && !emp.Active && emp.InactiveSince != nil {
		semiAt := firstOfNextMonth(*emp.InactiveSince)
		if !now.Before(semiAt) {
			state = model.StateSemiFrozen
		}
	}

	switch state {
	case model.StateFrozen:
		return Decision{State: state}
	case model.StateSemiFrozen:
		return Decision{State: state, WritableFields: eligibilityFields}
	default:
		return Decision{State: state, FullyWritable: true}
	}
}

// Eligible reports whether an inactive employee may still earn for a record
// month. An inactive RM earns only for months from the inactivity month up
// to (not including) inactivity month + the eligibility window; an active
// employee always earns.
func (m *Manager) Eligible(recordMonth string, emp *model.Employee) bool {
	if emp == nil {
		return false
	}
	if emp.Active || emp.InactiveSince == nil {
		return true
	}
	recIdx, ok := model.MonthIndex(recordMonth)
	if !ok {
		return false
	}
	inactiveIdx, ok := model.MonthIndex(model.MonthKey(*emp.InactiveSince))
	if !ok {
		return false
	}
	diff := recIdx - inactiveIdx
	return diff >= 0 && diff < m.eligibilityMonths
}

// Merge applies a freshly computed record onto the stored one under a gate
// decision. It returns the record to persist and whether anything may be
// written at all. Frozen records are returned unchanged.
func Merge(stored, computed *model.MonthlyRecord, d Decision) (*model.MonthlyRecord, bool) {
	if stored == nil {
		computed.LifecycleState = d.State
		return computed, d.State != model.StateFrozen
	}

	switch {
	case d.FullyWritable:
		computed.CreatedAt = stored.CreatedAt
		computed.LifecycleState = d.State
		return computed, true
	case d.State == model.StateSemiFrozen:
		merged := *stored
		merged.Eligible = computed.Eligible
		merged.LifecycleState = advance(stored.LifecycleState, d.State)
		return &merged, true
	default:
		return stored, false
	}
}

// advance never lets a state move backward.
func advance(old, proposed model.LifecycleState) model.LifecycleState {
	if proposed.Rank() > old.Rank() {
		return proposed
	}
	return old
}

// freezeTime is the first instant a record month is frozen: the first day of
// the month after recordMonth + grace.
func freezeTime(recordMonth string, graceMonths int) (time.Time, bool) {
	t, err := time.Parse("2006-01", recordMonth)
	if err != nil {
		return time.Time{}, false
	}
	return t.AddDate(0, graceMonths+1, 0), true
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}
