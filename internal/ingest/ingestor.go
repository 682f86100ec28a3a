// Package ingest normalizes raw ledger records into scoring units: fraction
// expansion, reconciliation filtering, identity resolution, and blacklist
// classification.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
	"github.com/iwell/incentive-engine/internal/window"
)

// ValidationApproved is the validation status that makes a fraction's
// timestamp eligible for windowing.
const ValidationApproved = "APPROVED"

// Ingestor loads raw records for a window and turns them into
// TransactionUnits attributable to a resolved RM.
type Ingestor struct {
	storage service.Storage
	logger  *slog.Logger

	// resolved caches owner-string lookups for the duration of one window so
	// repeated owners cost one storage round trip.
	resolved map[string]*model.Employee
}

// New creates an Ingestor backed by storage.
func New(storage service.Storage, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		storage:  storage,
		logger:   logger,
		resolved: make(map[string]*model.Employee),
	}
}

// Result carries the normalized units for one window plus drop counters.
type Result struct {
	Units              []model.TransactionUnit
	UnresolvedOwners   int
	ExcludedReconcile  int
	ExcludedWindow     int
	ExcludedBlacklist  int
}

// Window pulls every operation's raw records for w and normalizes them.
// Identity failures and reconciliation rejections are excluded without
// aborting the run.
func (in *Ingestor) Window(ctx context.Context, w window.Window, rules model.CategoryRules) (*Result, error) {
	res := &Result{}
	for _, op := range model.Operations {
		records, err := in.storage.RawRecords(ctx, op, w.Start, w.End)
		if err != nil {
			return nil, fmt.Errorf("loading %s records: %w", op, err)
		}
		for i := range records {
			if err := in.expand(ctx, &records[i], w, rules, res); err != nil {
				return nil, err
			}
		}
	}
	if res.UnresolvedOwners > 0 {
		in.logger.WarnContext(ctx, "dropped units with unresolved owners",
			"window", w.Label, "count", res.UnresolvedOwners)
	}
	return res, nil
}

// expand turns one raw record into zero or more TransactionUnits.
func (in *Ingestor) expand(ctx context.Context, rec *model.RawRecord, w window.Window, rules model.CategoryRules, res *Result) error {
	if !rec.Operation.Valid() {
		in.logger.WarnContext(ctx, "skipping record with unknown operation",
			"record_id", rec.ID, "operation", string(rec.Operation))
		return nil
	}

	emp, err := in.resolve(ctx, rec.OwnerName)
	if err != nil {
		if errors.Is(err, common.ErrIdentityUnresolved) {
			res.UnresolvedOwners++
			in.logger.WarnContext(ctx, "identity resolution failure",
				"record_id", rec.ID, "owner", rec.OwnerName)
			return nil
		}
		return fmt.Errorf("resolving owner for record %s: %w", rec.ID, err)
	}

	blacklisted := Blacklisted(rec.Category, rec.SubCategory, rules)
	if blacklisted && !rec.Operation.Additive() {
		// Subtractions in excluded categories never count against an RM.
		res.ExcludedBlacklist++
		return nil
	}

	if len(rec.Fractions) == 0 {
		in.emitWhole(rec, emp, w, blacklisted, res)
		return nil
	}
	for _, fr := range rec.Fractions {
		in.emitFraction(rec, fr, emp, w, blacklisted, res)
	}
	return nil
}

// emitWhole windows a fraction-less record on its own ledger date.
func (in *Ingestor) emitWhole(rec *model.RawRecord, emp *model.Employee, w window.Window, blacklisted bool, res *Result) {
	if !model.ReconcileAccepted(rec.ReconcileStatus) {
		res.ExcludedReconcile++
		return
	}
	if !w.Contains(rec.Date) {
		res.ExcludedWindow++
		return
	}
	res.Units = append(res.Units, model.TransactionUnit{
		RMID:          emp.ID,
		RMName:        emp.Name,
		Month:         w.MonthKey(),
		Operation:     rec.Operation,
		Category:      rec.Category,
		SubCategory:   rec.SubCategory,
		Amount:        rec.Amount,
		EffectiveDate: rec.Date,
		Blacklisted:   blacklisted,
		SourceID:      rec.ID,
		LineID:        rec.ID,
	})
}

// emitFraction windows one fraction on its own latest approved validation
// timestamp. A fraction with no approved validation inside the window does
// not score, regardless of the parent record's date.
func (in *Ingestor) emitFraction(rec *model.RawRecord, fr model.Fraction, emp *model.Employee, w window.Window, blacklisted bool, res *Result) {
	if !model.ReconcileAccepted(fr.ReconcileStatus) {
		res.ExcludedReconcile++
		return
	}
	effective, ok := latestApproved(fr.Validations, w)
	if !ok {
		res.ExcludedWindow++
		return
	}
	res.Units = append(res.Units, model.TransactionUnit{
		RMID:          emp.ID,
		RMName:        emp.Name,
		Month:         w.MonthKey(),
		Operation:     rec.Operation,
		Category:      rec.Category,
		SubCategory:   rec.SubCategory,
		Amount:        fr.Amount,
		EffectiveDate: effective,
		Blacklisted:   blacklisted,
		SourceID:      rec.ID,
		LineID:        fr.ID,
	})
}

// resolve maps an owner string to an employee, trying the explicit name first
// and the alias table second.
func (in *Ingestor) resolve(ctx context.Context, owner string) (*model.Employee, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, common.ErrIdentityUnresolved
	}
	if emp, ok := in.resolved[owner]; ok {
		if emp == nil {
			return nil, common.ErrIdentityUnresolved
		}
		return emp, nil
	}

	emp, err := in.storage.EmployeeByName(ctx, owner)
	if errors.Is(err, common.ErrNotFound) {
		emp, err = in.storage.EmployeeByAlias(ctx, owner)
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
		in.resolved[owner] = nil
		return nil, common.ErrIdentityUnresolved
	case err != nil:
		return nil, err
	}
	in.resolved[owner] = emp
	return emp, nil
}

// latestApproved returns the newest APPROVED validation timestamp that falls
// inside the window.
func latestApproved(vals []model.Validation, w window.Window) (time.Time, bool) {
	var best time.Time
	var found bool
	for _, v := range vals {
		if !strings.EqualFold(strings.TrimSpace(v.Status), ValidationApproved) {
			continue
		}
		if !w.Contains(v.ValidatedAt) {
			continue
		}
		if !found || v.ValidatedAt.After(best) {
			best = v.ValidatedAt
			found = true
		}
	}
	return best, found
}

// Blacklisted reports whether a category pair matches the configured
// blacklist under its match mode and scope.
func Blacklisted(category, subCategory string, rules model.CategoryRules) bool {
	if len(rules.Blacklisted) == 0 {
		return false
	}
	scopes := rules.Scope
	if len(scopes) == 0 {
		scopes = []string{"category", "sub_category"}
	}
	for _, scope := range scopes {
		var field string
		switch scope {
		case "category":
			field = category
		case "sub_category":
			field = subCategory
		default:
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		for _, token := range rules.Blacklisted {
			token = strings.ToLower(strings.TrimSpace(token))
			if token == "" {
				continue
			}
			if rules.MatchMode == "exact" {
				if field == token {
					return true
				}
			} else if strings.Contains(field, token) {
				return true
			}
		}
	}
	return false
}
