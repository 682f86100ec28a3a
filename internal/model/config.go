package model

import "time"

// Scorer names understood by the engine. Each has its own ConfigDocument and
// output keyspace; the pipeline itself is shared.
const (
	ScorerSIP       = "sip"
	ScorerLumpsum   = "lumpsum"
	ScorerInsurance = "insurance"
)

// KnownScorer reports whether name is one of the built-in scorers.
func KnownScorer(name string) bool {
	switch name {
	case ScorerSIP, ScorerLumpsum, ScorerInsurance:
		return true
	}
	return false
}

// ConfigDocument is the externally-editable rule table for one scorer.
// Structure is validated on load; a document that fails validation aborts the
// run rather than falling back to partial defaults.
type ConfigDocument struct {
	Scorer        string         `json:"scorer"`
	SchemaVersion string         `json:"schema_version"`
	Status        string         `json:"status"`
	Options       Options        `json:"options"`
	RateSlabs     []RateSlab     `json:"rate_slabs"`
	MeetingSlabs  []MeetingSlab  `json:"meeting_slabs"`
	Weights       Weights        `json:"weights"`
	CategoryRules CategoryRules  `json:"category_rules"`
	Penalty       PenaltyConfig  `json:"penalty"`
	QtrBonus      BonusTemplate  `json:"qtr_bonus_template"`
	AnnualBonus   BonusTemplate  `json:"annual_bonus_template"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// Options are the remote-editable runtime switches for a scorer.
type Options struct {
	RangeMode                   string  `json:"range_mode"` // month | last5 | fy
	FYMode                      string  `json:"fy_mode"`    // FY_APR | CAL
	AuditMode                   string  `json:"audit_mode"` // compact | full
	InactivityGraceMonths       int     `json:"inactivity_grace_months"`
	InactiveAction              string  `json:"inactive_action"` // skip | mark_ineligible
	InactiveIneligibilityMonths int     `json:"inactive_ineligibility_months"`
	PeriodicBonusEnable         bool    `json:"periodic_bonus_enable"`
	PeriodicBonusApply          bool    `json:"periodic_bonus_apply"`
	ApplyStreakBonus            bool    `json:"apply_streak_bonus"`
	AnnualTrailRatePct          float64 `json:"annual_trail_rate_pct"`
}

// RateSlab maps a growth-percentage band [Min, Max) to an incentive rate.
// A nil Max marks the unbounded top band.
type RateSlab struct {
	Min   float64  `json:"min_pct"`
	Max   *float64 `json:"max_pct"`
	Rate  float64  `json:"rate"`
	Label string   `json:"label"`
}

// MeetingSlab maps a meeting-count band [Min, Max) to a multiplier.
type MeetingSlab struct {
	Min        int    `json:"min_count"`
	Max        *int   `json:"max_count"`
	Multiplier float64 `json:"mult"`
	Label      string  `json:"label"`
}

// Weights hold the per-operation multipliers plus conditional bonus knobs.
// Weights are ratios: 1.0 means full, 0.5 half, 1.2 a 20% uplift.
type Weights struct {
	Purchase           float64         `json:"purchase"`
	Redemption         float64         `json:"redemption"`
	SwitchIn           float64         `json:"switch_in"`
	SwitchOut          float64         `json:"switch_out"`
	COBIn              float64         `json:"cob_in"`
	COBOut             float64         `json:"cob_out"`
	DebtBonus          DebtBonusConfig `json:"debt_bonus"`
	HattrickBonus      float64         `json:"hattrick_bonus"`
	FiveStreakBonus    float64         `json:"five_streak_bonus"`
	StreakThresholdPct float64         `json:"streak_threshold_pct"`
}

// ForOperation returns the configured weight for an operation.
func (w Weights) ForOperation(op Operation) float64 {
	switch op {
	case OpPurchase:
		return w.Purchase
	case OpRedemption:
		return w.Redemption
	case OpSwitchIn:
		return w.SwitchIn
	case OpSwitchOut:
		return w.SwitchOut
	case OpCOBIn:
		return w.COBIn
	case OpCOBOut:
		return w.COBOut
	}
	return 0
}

// DebtBonusConfig rewards RMs whose debt-category purchase share stays below
// a threshold. Evaluated per RM, never per transaction.
type DebtBonusConfig struct {
	Enable               bool     `json:"enable"`
	BonusPct             float64  `json:"bonus_pct"`
	MaxDebtRatioPct      float64  `json:"max_debt_ratio_pct"`
	Categories           []string `json:"debt_categories"`
	ExcludeFromDebtBonus bool     `json:"exclude_blacklisted"`
}

// CategoryRules classify transaction categories against a blacklist.
type CategoryRules struct {
	Blacklisted        []string `json:"blacklisted_categories"`
	MatchMode          string   `json:"match_mode"` // substring | exact
	Scope              []string `json:"scope"`      // category, sub_category
	ZeroWeightPurchase bool     `json:"zero_weight_purchase"`
	ZeroWeightSwitchIn bool     `json:"zero_weight_switch_in"`
}

// PenaltyConfig describes the negative-growth penalty bands.
type PenaltyConfig struct {
	Enable bool          `json:"enable"`
	Mode   string        `json:"mode"` // flat | trail_scaled
	Slabs  []PenaltySlab `json:"slabs"`
}

// PenaltySlab fires when growth_pct <= MaxGrowthPct (slabs are evaluated in
// ascending MaxGrowthPct order, first match wins). FlatPoints is the flat
// deduction; TrailPct/CapPoints drive the trail-scaled interpretation.
type PenaltySlab struct {
	MaxGrowthPct float64 `json:"max_growth_pct"`
	FlatPoints   float64 `json:"flat_points"`
	TrailPct     float64 `json:"trail_pct"`
	CapPoints    float64 `json:"cap_points"`
}

// BonusTemplate is an NP-slab bonus table used for quarterly and annual
// payouts. The highest qualifying MinNet slab wins.
type BonusTemplate struct {
	Slabs             []BonusSlab `json:"slabs"`
	MinPositiveMonths int         `json:"min_positive_months"`
}

// BonusSlab awards Bonus once the period net reaches MinNet.
type BonusSlab struct {
	MinNet float64 `json:"min_np"`
	Bonus  float64 `json:"bonus"`
}

// ConfigSnapshot is an immutable copy of one ConfigDocument at the instant a
// run begins, plus the content hash of its canonical serialization. All
// records written by that run carry the same hash.
type ConfigSnapshot struct {
	Doc       ConfigDocument
	Hash      string
	Canonical []byte
	LoadedAt  time.Time
}
