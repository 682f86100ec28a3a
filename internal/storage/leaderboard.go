package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
)

const leaderboardColumns = `scorer, rm_id, rm_name, month, aum_start, additions,
	subtractions, net_value, growth_pct, growth_band, rate_used, base_incentive,
	meetings_count, meetings_multiplier, meetings_band, debt_bonus, penalty_points,
	positive_streak, streak_bonus, periodic_bonus, final_incentive, eligible,
	lifecycle_state, config_hash, config_schema_version, created_at, updated_at`

// GetMonthlyRecord fetches one leaderboard row by its key.
func (s *SQLiteStorage) GetMonthlyRecord(ctx context.Context, scorer, rmID, month string) (*model.MonthlyRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+leaderboardColumns+` FROM leaderboard WHERE scorer = ? AND rm_id = ? AND month = ?`,
		scorer, rmID, month)

	rec, err := scanMonthlyRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonthlyRecord(row rowScanner) (*model.MonthlyRecord, error) {
	var rec model.MonthlyRecord
	var growthBand, meetingsBand, periodicBonus sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&rec.Scorer, &rec.RMID, &rec.RMName, &rec.Month,
		&rec.AUMStart, &rec.Additions, &rec.Subtractions, &rec.NetValue,
		&rec.GrowthPct, &growthBand, &rec.RateUsed, &rec.BaseIncentive,
		&rec.MeetingsCount, &rec.MeetingsMultiplier, &meetingsBand,
		&rec.DebtBonus, &rec.PenaltyPoints, &rec.StreakLength, &rec.StreakBonus,
		&periodicBonus, &rec.FinalIncentive, &rec.Eligible,
		&rec.LifecycleState, &rec.ConfigHash, &rec.ConfigSchemaVersion,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.GrowthBand = growthBand.String
	rec.MeetingsBand = meetingsBand.String
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	if periodicBonus.String != "" {
		rec.PeriodicBonus = &model.PeriodicBonus{}
		if err := json.Unmarshal([]byte(periodicBonus.String), rec.PeriodicBonus); err != nil {
			return nil, fmt.Errorf("failed to decode periodic bonus: %w", err)
		}
	}
	return &rec, nil
}

// UpsertMonthlyRecord writes a leaderboard row, creating it on first sight
// and replacing it thereafter. CreatedAt survives updates.
func (s *SQLiteStorage) UpsertMonthlyRecord(ctx context.Context, rec *model.MonthlyRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	var periodicBonus string
	if rec.PeriodicBonus != nil {
		raw, err := json.Marshal(rec.PeriodicBonus)
		if err != nil {
			return fmt.Errorf("failed to encode periodic bonus: %w", err)
		}
		periodicBonus = string(raw)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard (`+leaderboardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scorer, rm_id, month) DO UPDATE SET
			rm_name = excluded.rm_name,
			aum_start = excluded.aum_start,
			additions = excluded.additions,
			subtractions = excluded.subtractions,
			net_value = excluded.net_value,
			growth_pct = excluded.growth_pct,
			growth_band = excluded.growth_band,
			rate_used = excluded.rate_used,
			base_incentive = excluded.base_incentive,
			meetings_count = excluded.meetings_count,
			meetings_multiplier = excluded.meetings_multiplier,
			meetings_band = excluded.meetings_band,
			debt_bonus = excluded.debt_bonus,
			penalty_points = excluded.penalty_points,
			positive_streak = excluded.positive_streak,
			streak_bonus = excluded.streak_bonus,
			periodic_bonus = excluded.periodic_bonus,
			final_incentive = excluded.final_incentive,
			eligible = excluded.eligible,
			lifecycle_state = excluded.lifecycle_state,
			config_hash = excluded.config_hash,
			config_schema_version = excluded.config_schema_version,
			updated_at = excluded.updated_at`,
		rec.Scorer, rec.RMID, rec.RMName, rec.Month,
		rec.AUMStart, rec.Additions, rec.Subtractions, rec.NetValue,
		rec.GrowthPct, rec.GrowthBand, rec.RateUsed, rec.BaseIncentive,
		rec.MeetingsCount, rec.MeetingsMultiplier, rec.MeetingsBand,
		rec.DebtBonus, rec.PenaltyPoints, rec.StreakLength, rec.StreakBonus,
		periodicBonus, rec.FinalIncentive, rec.Eligible,
		string(rec.LifecycleState), rec.ConfigHash, rec.ConfigSchemaVersion,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly record: %w", err)
	}
	return nil
}

// PeriodTotals sums stored nets over a set of months for the periodic-bonus
// gate. Months with no record contribute nothing.
func (s *SQLiteStorage) PeriodTotals(ctx context.Context, scorer, rmID string, months []string) (service.PeriodTotals, error) {
	var totals service.PeriodTotals
	if err := validateContext(ctx); err != nil {
		return totals, err
	}
	if len(months) == 0 {
		return totals, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(months)), ",")
	args := make([]any, 0, len(months)+2)
	args = append(args, scorer, rmID)
	for _, m := range months {
		args = append(args, m)
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(net_value), 0),
		       COALESCE(SUM(CASE WHEN net_value > 0 THEN 1 ELSE 0 END), 0)
		FROM leaderboard
		WHERE scorer = ? AND rm_id = ? AND month IN (`+placeholders+`)`,
		args...).Scan(&totals.NetValue, &totals.PositiveMonths)
	if err != nil {
		return totals, fmt.Errorf("failed to query period totals: %w", err)
	}
	return totals, nil
}

// StreakLength returns the positive-growth streak stored on a given month's
// record, or zero when no record exists.
func (s *SQLiteStorage) StreakLength(ctx context.Context, scorer, rmID, month string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var streak int
	err := s.db.QueryRowContext(ctx,
		`SELECT positive_streak FROM leaderboard WHERE scorer = ? AND rm_id = ? AND month = ?`,
		scorer, rmID, month).Scan(&streak)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query streak: %w", err)
	}
	return streak, nil
}
