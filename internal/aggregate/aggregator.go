// Package aggregate rolls normalized transaction units up into per-RM
// weighted totals and audit breakdowns.
package aggregate

import (
	"sort"
	"strings"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// RMTotals is one RM's rolled-up window. Additions and Subtractions are
// weighted sums; the breakdown maps keep raw (unweighted) amounts for audit.
type RMTotals struct {
	RMID   string
	RMName string
	Month  string

	Additions    float64
	Subtractions float64
	NetValue     float64

	ByOperation       map[model.Operation]float64
	ByCategory        map[string]float64
	AdditionsByOp     map[string]float64
	SubtractionsByOp  map[string]float64
	ExcludedAdditions float64

	PurchaseTotal float64
	DebtPurchases float64
}

// NetAfterWeights recomputes net from the weighted sides.
func (t *RMTotals) NetAfterWeights() float64 {
	return t.Additions - t.Subtractions
}

// Totals aggregates units per RM. Blacklisted additive units contribute zero
// weight toward net but are retained in the category breakdown under the
// excluded bucket; the per-operation zero-weight toggles in rules can add
// blacklisted purchases or switch-ins back into the weighted totals.
// Debt-category purchase share is tracked for the debt bonus.
func Totals(units []model.TransactionUnit, weights model.Weights, rules model.CategoryRules) map[string]*RMTotals {
	out := make(map[string]*RMTotals)

	debtCats := make(map[string]struct{}, len(weights.DebtBonus.Categories))
	for _, c := range weights.DebtBonus.Categories {
		debtCats[normalize(c)] = struct{}{}
	}

	for _, u := range units {
		t, ok := out[u.RMID]
		if !ok {
			t = &RMTotals{
				RMID:             u.RMID,
				RMName:           u.RMName,
				Month:            u.Month,
				ByOperation:      make(map[model.Operation]float64),
				ByCategory:       make(map[string]float64),
				AdditionsByOp:    make(map[string]float64),
				SubtractionsByOp: make(map[string]float64),
			}
			out[u.RMID] = t
		}

		if u.Blacklisted && zeroWeighted(u.Operation, rules) {
			// Only additive units arrive here; subtractive blacklisted units
			// were removed at ingest.
			t.ExcludedAdditions += u.Amount
			t.ByCategory[model.ExcludedCategoryBucket] += u.Amount
			if u.Operation == model.OpPurchase && !weights.DebtBonus.ExcludeFromDebtBonus {
				t.PurchaseTotal += u.Amount
				if _, isDebt := debtCats[normalize(u.Category)]; isDebt {
					t.DebtPurchases += u.Amount
				}
			}
			continue
		}

		weighted := u.Amount * weights.ForOperation(u.Operation)
		t.ByOperation[u.Operation] += u.Amount
		t.ByCategory[categoryLabel(u)] += u.Amount

		if u.Operation.Additive() {
			t.Additions += weighted
			t.AdditionsByOp[string(u.Operation)] += u.Amount
		} else {
			t.Subtractions += weighted
			t.SubtractionsByOp[string(u.Operation)] += u.Amount
		}

		if u.Operation == model.OpPurchase {
			t.PurchaseTotal += u.Amount
			if _, isDebt := debtCats[normalize(u.Category)]; isDebt {
				t.DebtPurchases += u.Amount
			}
		}
	}

	for _, t := range out {
		t.NetValue = common.Round2(t.NetAfterWeights())
	}
	return out
}

// DebtBonus evaluates the low-debt-share bonus for one RM's totals. It pays
// only when some debt purchasing happened and its share of all purchases
// stays under the configured ceiling.
func DebtBonus(t *RMTotals, cfg model.DebtBonusConfig) float64 {
	if !cfg.Enable || t.DebtPurchases <= 0 || t.PurchaseTotal <= 0 {
		return 0
	}
	ratioPct := 100 * t.DebtPurchases / t.PurchaseTotal
	if ratioPct >= cfg.MaxDebtRatioPct {
		return 0
	}
	return common.Round2(t.DebtPurchases * cfg.BonusPct / 100)
}

// OperationBreakdown returns the per-operation totals in the canonical
// operation order, skipping zero lines.
func OperationBreakdown(t *RMTotals) []model.OperationTotal {
	out := make([]model.OperationTotal, 0, len(t.ByOperation))
	for _, op := range model.Operations {
		if sum, ok := t.ByOperation[op]; ok && sum != 0 {
			out = append(out, model.OperationTotal{Operation: op, Sum: common.Round2(sum)})
		}
	}
	return out
}

// CategoryBreakdown returns per-category totals sorted by descending absolute
// sum, ties broken by name.
func CategoryBreakdown(t *RMTotals) []model.CategoryTotal {
	out := make([]model.CategoryTotal, 0, len(t.ByCategory))
	for cat, sum := range t.ByCategory {
		out = append(out, model.CategoryTotal{Category: cat, Sum: common.Round2(sum)})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Sum), abs(out[j].Sum)
		if ai != aj {
			return ai > aj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// zeroWeighted reports whether a blacklisted additive unit stays out of the
// weighted totals. Purchases and switch-ins carry their own toggle; every
// other addition is always zero-weighted.
func zeroWeighted(op model.Operation, rules model.CategoryRules) bool {
	switch op {
	case model.OpPurchase:
		return rules.ZeroWeightPurchase
	case model.OpSwitchIn:
		return rules.ZeroWeightSwitchIn
	}
	return true
}

func categoryLabel(u model.TransactionUnit) string {
	if u.Category != "" {
		return u.Category
	}
	if u.SubCategory != "" {
		return u.SubCategory
	}
	return "Uncategorized"
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
