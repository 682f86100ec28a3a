// Package engine orchestrates a scoring run: lock, config snapshot, window
// resolution, per-RM computation, lifecycle-gated persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iwell/incentive-engine/internal/aggregate"
	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/config"
	"github.com/iwell/incentive-engine/internal/ingest"
	"github.com/iwell/incentive-engine/internal/lifecycle"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/rules"
	"github.com/iwell/incentive-engine/internal/service"
	"github.com/iwell/incentive-engine/internal/window"
)

// DefaultLockTTL bounds how long a crashed run can block the next one.
const DefaultLockTTL = 90 * time.Minute

// Options tune one run without touching the stored config document.
type Options struct {
	DryRun   bool
	TargetRM string
	Month    string // YYYY-MM override; empty means the config's range mode
	LockTTL  time.Duration

	// Progress is called after each RM in a window, for CLI progress bars.
	Progress func(done, total int)
}

// Engine wires the pipeline stages together.
type Engine struct {
	storage   service.Storage
	lock      service.RunLock
	loader    *config.Loader
	logger    *slog.Logger
	retryOpts service.RetryOptions
	now       func() time.Time
}

// New creates an engine. A nil lock disables run locking (tests, dry runs
// against a scratch database).
func New(storage service.Storage, lock service.RunLock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		storage: storage,
		lock:    lock,
		loader:  config.NewLoader(storage, logger),
		logger:  logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
		now: time.Now,
	}
}

// Run executes one scoring run for a scorer as of a point in time. Another
// live run on the same scorer returns ErrLockHeld without computing
// anything.
func (e *Engine) Run(ctx context.Context, scorer string, asOf time.Time, opts Options) (*model.RunResult, error) {
	started := e.now()
	result := &model.RunResult{
		Scorer:    scorer,
		DryRun:    opts.DryRun,
		StartedAt: started.UTC(),
	}

	if e.lock != nil && !opts.DryRun {
		ttl := opts.LockTTL
		if ttl <= 0 {
			ttl = DefaultLockTTL
		}
		acquired, err := e.lock.Acquire(ctx, scorer, ttl)
		if err != nil {
			return result, fmt.Errorf("acquiring run lock: %w", err)
		}
		if !acquired {
			return result, fmt.Errorf("scorer %s: %w", scorer, common.ErrLockHeld)
		}
		defer func() {
			if err := e.lock.Release(ctx, scorer); err != nil {
				e.logger.WarnContext(ctx, "failed to release run lock", "scorer", scorer, "error", err)
			}
		}()
	}

	snap, err := e.loader.Load(ctx, scorer)
	if err != nil {
		return result, err
	}
	result.ConfigHash = snap.Hash

	windows, err := e.resolveWindows(snap.Doc.Options, asOf, opts.Month)
	if err != nil {
		return result, err
	}
	for _, w := range windows {
		result.Windows = append(result.Windows, w.Label)
	}

	e.logger.InfoContext(ctx, "starting run",
		"scorer", scorer,
		"config_hash", snap.Hash,
		"windows", result.Windows,
		"dry_run", opts.DryRun)

	for _, w := range windows {
		if err := e.processWindow(ctx, scorer, w, snap, opts, result); err != nil {
			result.Duration = e.now().Sub(started)
			return result, err
		}
	}

	result.Duration = e.now().Sub(started)
	e.logger.InfoContext(ctx, "run complete",
		"scorer", scorer,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration)
	return result, nil
}

func (e *Engine) resolveWindows(opts model.Options, asOf time.Time, monthOverride string) ([]window.Window, error) {
	if monthOverride != "" {
		t, err := time.Parse("2006-01", monthOverride)
		if err != nil {
			return nil, fmt.Errorf("invalid month %q: %w", monthOverride, err)
		}
		return []window.Window{window.MonthWindow(t)}, nil
	}
	return window.Resolve(opts.RangeMode, opts.FYMode, asOf)
}

func (e *Engine) processWindow(ctx context.Context, scorer string, w window.Window, snap model.ConfigSnapshot, opts Options, result *model.RunResult) error {
	doc := &snap.Doc

	ingestor := ingest.New(e.storage, e.logger)
	ingested, err := ingestor.Window(ctx, w, doc.CategoryRules)
	if err != nil {
		return fmt.Errorf("window %s: %w", w.Label, err)
	}

	totals := aggregate.Totals(ingested.Units, doc.Weights, doc.CategoryRules)
	meetings, err := e.storage.MeetingCounts(ctx, w.Start, w.End)
	if err != nil {
		return fmt.Errorf("window %s meetings: %w", w.Label, err)
	}

	rmIDs := make([]string, 0, len(totals))
	for id := range totals {
		if opts.TargetRM != "" && id != opts.TargetRM {
			continue
		}
		rmIDs = append(rmIDs, id)
	}
	sort.Strings(rmIDs)

	for i, rmID := range rmIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processRM(ctx, scorer, w, totals[rmID], meetings, snap, opts, result); err != nil {
			result.Failed++
			result.FailedRMs = append(result.FailedRMs, rmID)
			e.logger.ErrorContext(ctx, "failed to score RM",
				"scorer", scorer, "rm_id", rmID, "window", w.Label, "error", err)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(rmIDs))
		}
	}
	return nil
}

func (e *Engine) processRM(ctx context.Context, scorer string, w window.Window, totals *aggregate.RMTotals, meetings map[string]int, snap model.ConfigSnapshot, opts Options, result *model.RunResult) error {
	doc := &snap.Doc
	month := w.MonthKey()

	emp, err := e.storage.EmployeeByID(ctx, totals.RMID)
	if err != nil {
		return fmt.Errorf("loading employee: %w", err)
	}

	gate := lifecycle.NewManager(doc.Options.InactivityGraceMonths, doc.Options.InactiveIneligibilityMonths)
	eligible := gate.Eligible(month, emp)
	if !eligible && doc.Options.InactiveAction == "skip" {
		result.Skipped++
		e.logger.InfoContext(ctx, "skipping ineligible inactive RM",
			"rm_id", totals.RMID, "month", month)
		return nil
	}

	aum, _, err := e.storage.AUMStart(ctx, emp.Name, month)
	if err != nil {
		return fmt.Errorf("loading AUM: %w", err)
	}

	score := rules.Score(rules.ScoreInput{
		NetValue:      totals.NetValue,
		AUMStart:      aum,
		MeetingsCount: meetings[emp.Name],
	}, doc)

	c := &computation{
		totals:    totals,
		score:     score,
		meetings:  meetings[emp.Name],
		debtBonus: aggregate.DebtBonus(totals, doc.Weights.DebtBonus),
		penalty: rules.Penalty(totals.NetValue, score.GrowthPct, score.AUMStart,
			doc.Penalty, doc.Options.AnnualTrailRatePct),
		eligible: eligible,
	}

	if doc.Options.ApplyStreakBonus {
		if err := e.applyStreak(ctx, scorer, month, c, doc); err != nil {
			return err
		}
	}
	// Periodic projections are always computed and reported in period-end
	// months; the enable/apply flags only control whether they pay out.
	if err := e.applyPeriodicBonus(ctx, scorer, w, c, doc); err != nil {
		return err
	}

	rec := buildRecord(scorer, c, snap)
	audit := buildAudit(scorer, c, w, snap)

	if opts.DryRun {
		result.Processed++
		e.logger.InfoContext(ctx, "dry run, not persisting",
			"rm_id", rec.RMID, "month", month, "final_incentive", rec.FinalIncentive)
		return nil
	}
	return e.persist(ctx, rec, audit, emp, gate, result)
}

// applyStreak seeds the streak from the previous month's stored record and
// advances it on this month's growth.
func (e *Engine) applyStreak(ctx context.Context, scorer, month string, c *computation, doc *model.ConfigDocument) error {
	prev, err := previousMonth(month)
	if err != nil {
		return err
	}
	prevStreak, err := e.storage.StreakLength(ctx, scorer, c.totals.RMID, prev)
	if err != nil {
		return fmt.Errorf("loading streak: %w", err)
	}
	c.streak = rules.NextStreak(prevStreak, c.score.GrowthPct, doc.Weights.StreakThresholdPct)
	c.streakBon = rules.StreakBonus(c.streak, doc.Weights)
	return nil
}

// applyPeriodicBonus attaches QTD and YTD projections in period-end months.
// History comes from stored rows for the period's earlier months; the
// current month's net is added in memory since its row is not written yet.
func (e *Engine) applyPeriodicBonus(ctx context.Context, scorer string, w window.Window, c *computation, doc *model.ConfigDocument) error {
	quarter, err := window.Quarter(w.Start, doc.Options.FYMode)
	if err != nil {
		return err
	}
	fy, err := window.FiscalYear(w.Start, doc.Options.FYMode)
	if err != nil {
		return err
	}

	bonus := &model.PeriodicBonus{}
	if window.IsPeriodEndMonth(w.Start, quarter) {
		history, err := e.periodHistory(ctx, scorer, c.totals.RMID, quarter, w.MonthKey())
		if err != nil {
			return err
		}
		bonus.Quarterly = rules.PeriodBonus(doc.QtrBonus, quarter.Label, history, c.totals.NetValue)
	}
	if window.IsPeriodEndMonth(w.Start, fy) {
		history, err := e.periodHistory(ctx, scorer, c.totals.RMID, fy, w.MonthKey())
		if err != nil {
			return err
		}
		bonus.Annual = rules.PeriodBonus(doc.AnnualBonus, fy.Label, history, c.totals.NetValue)
	}

	if bonus.Quarterly != nil || bonus.Annual != nil {
		c.periodic = bonus
	}
	return nil
}

func (e *Engine) periodHistory(ctx context.Context, scorer, rmID string, period window.Window, currentMonth string) (service.PeriodTotals, error) {
	months := make([]string, 0, 11)
	for _, m := range window.MonthKeys(period) {
		if m == currentMonth {
			continue
		}
		months = append(months, m)
	}
	totals, err := e.storage.PeriodTotals(ctx, scorer, rmID, months)
	if err != nil {
		return totals, fmt.Errorf("loading period history: %w", err)
	}
	return totals, nil
}

// persist writes one record through the lifecycle gate, retrying transient
// storage failures. Blocked writes are logged no-ops, not errors.
func (e *Engine) persist(ctx context.Context, rec *model.MonthlyRecord, audit *model.AuditRecord, emp *model.Employee, gate *lifecycle.Manager, result *model.RunResult) error {
	stored, err := e.storage.GetMonthlyRecord(ctx, rec.Scorer, rec.RMID, rec.Month)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("loading existing record: %w", err)
	}

	decision := gate.Gate(rec.Month, e.now(), emp)
	merged, writable := lifecycle.Merge(stored, rec, decision)
	if !writable {
		result.Skipped++
		e.logger.InfoContext(ctx, "record write blocked by lifecycle state",
			"rm_id", rec.RMID, "month", rec.Month, "state", decision.State)
		return nil
	}
	if decision.State == model.StateSemiFrozen {
		e.logger.InfoContext(ctx, "semi-frozen record, applying eligibility fields only",
			"rm_id", rec.RMID, "month", rec.Month)
	}

	err = common.WithRetry(ctx, func() error {
		return e.storage.UpsertMonthlyRecord(ctx, merged)
	}, e.retryOpts)
	if err != nil {
		return fmt.Errorf("persisting record: %w", err)
	}

	if err := e.storage.AppendAudit(ctx, audit); err != nil {
		return fmt.Errorf("appending audit: %w", err)
	}

	result.Processed++
	return nil
}

func previousMonth(month string) (string, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", fmt.Errorf("invalid month %q: %w", month, err)
	}
	return model.MonthKey(t.AddDate(0, -1, 0)), nil
}
