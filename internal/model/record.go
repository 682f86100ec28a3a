package model

import "time"

// LifecycleState classifies how much of a MonthlyRecord a rerun may still
// mutate. Transitions only move forward; Frozen is absorbing.
type LifecycleState string

const (
	StateMutable    LifecycleState = "mutable"
	StateSemiFrozen LifecycleState = "semi_frozen"
	StateFrozen     LifecycleState = "frozen"
)

// Rank orders lifecycle states for monotonicity checks.
func (s LifecycleState) Rank() int {
	switch s {
	case StateSemiFrozen:
		return 1
	case StateFrozen:
		return 2
	default:
		return 0
	}
}

// Employee is a row from the RM master used for identity resolution and the
// inactivity gate.
type Employee struct {
	ID            string
	Name          string
	Active        bool
	InactiveSince *time.Time
}

// MonthlyRecord is the compact leaderboard row, unique on (scorer, rm_id,
// month). Created on first successful computation for a window, then only
// updated through the lifecycle gate.
type MonthlyRecord struct {
	Scorer string `json:"scorer"`
	RMID   string `json:"rm_id"`
	RMName string `json:"rm_name"`
	Month  string `json:"month"`

	AUMStart     float64 `json:"aum_start"`
	Additions    float64 `json:"additions"`
	Subtractions float64 `json:"subtractions"`
	NetValue     float64 `json:"net_value"`

	GrowthPct  float64 `json:"growth_pct"`
	GrowthBand string  `json:"growth_band"`
	RateUsed   float64 `json:"rate_used"`

	BaseIncentive      float64        `json:"base_incentive"`
	MeetingsCount      int            `json:"meetings_count"`
	MeetingsMultiplier float64        `json:"meetings_multiplier"`
	MeetingsBand       string         `json:"meetings_band"`
	DebtBonus          float64        `json:"debt_bonus"`
	PenaltyPoints      float64        `json:"penalty_points"`
	StreakLength       int            `json:"positive_streak"`
	StreakBonus        float64        `json:"streak_bonus"`
	PeriodicBonus      *PeriodicBonus `json:"periodic_bonus,omitempty"`
	FinalIncentive     float64        `json:"final_incentive"`

	Eligible       bool           `json:"eligible"`
	LifecycleState LifecycleState `json:"lifecycle_state"`

	ConfigHash          string `json:"config_hash"`
	ConfigSchemaVersion string `json:"config_schema_version"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Key returns the upsert identity of the record.
func (r *MonthlyRecord) Key() (scorer, rmID, month string) {
	return r.Scorer, r.RMID, r.Month
}

// PeriodicBonus carries the quarter-to-date and year-to-date bonus
// projections for a record. Projections are populated in period-end months;
// Applied amounts are folded into FinalIncentive only when both the enable
// and apply flags are on and the gate qualifies.
type PeriodicBonus struct {
	Quarterly *PeriodBonusLine `json:"quarterly,omitempty"`
	Annual    *PeriodBonusLine `json:"annual,omitempty"`
}

// PeriodBonusLine is one period's bonus evaluation.
type PeriodBonusLine struct {
	Period            string  `json:"period"`
	NetToDate         float64 `json:"net_to_date"`
	PositiveMonths    int     `json:"positive_months"`
	MinPositiveMonths int     `json:"min_positive_months"`
	Potential         float64 `json:"potential_amount"`
	Qualified         bool    `json:"is_qualified"`
	Applied           float64 `json:"applied_amount"`
}

// OperationTotal is one line of the per-operation audit breakdown.
type OperationTotal struct {
	Operation Operation `json:"operation"`
	Sum       float64   `json:"sum"`
}

// CategoryTotal is one line of the per-category audit breakdown.
type CategoryTotal struct {
	Category string  `json:"category"`
	Sum      float64 `json:"sum"`
}

// ExcludedCategoryBucket labels the zero-weighted blacklist bucket inside the
// category breakdown. It survives compact-mode truncation whenever non-zero.
const ExcludedCategoryBucket = "Blacklisted (Excluded)"

// AuditRecord is the verbose companion to a MonthlyRecord. It exists purely
// for traceability and is never read back into computation.
type AuditRecord struct {
	ID     int64  `json:"id,omitempty"`
	Scorer string `json:"scorer"`
	RMID   string `json:"rm_id"`
	RMName string `json:"rm_name"`
	Month  string `json:"month"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	ByOperation  []OperationTotal   `json:"by_operation"`
	ByCategory   []CategoryTotal    `json:"by_category"`
	Additions    map[string]float64 `json:"additions"`
	Subtractions map[string]float64 `json:"subtractions"`
	ExcludedSum  float64            `json:"excluded_sum"`

	GrowthPct float64 `json:"growth_pct"`
	RateUsed  float64 `json:"rate_used"`

	AuditMode           string    `json:"audit_mode"`
	ConfigHash          string    `json:"config_hash"`
	ConfigSchemaVersion string    `json:"config_schema_version"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// RunResult is the operator-visible summary of one engine run. It is always
// produced, even on partial failure.
type RunResult struct {
	Scorer     string        `json:"scorer"`
	ConfigHash string        `json:"config_hash"`
	Windows    []string      `json:"windows"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	FailedRMs  []string      `json:"failed_rms,omitempty"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}
