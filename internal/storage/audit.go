package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iwell/incentive-engine/internal/model"
)

// AppendAudit writes one audit row. Audit rows are append-only; reruns add a
// new row rather than rewriting history.
func (s *SQLiteStorage) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("audit record cannot be nil")
	}

	byOperation, err := json.Marshal(rec.ByOperation)
	if err != nil {
		return fmt.Errorf("failed to encode operation breakdown: %w", err)
	}
	byCategory, err := json.Marshal(rec.ByCategory)
	if err != nil {
		return fmt.Errorf("failed to encode category breakdown: %w", err)
	}
	additions, err := json.Marshal(rec.Additions)
	if err != nil {
		return fmt.Errorf("failed to encode additions: %w", err)
	}
	subtractions, err := json.Marshal(rec.Subtractions)
	if err != nil {
		return fmt.Errorf("failed to encode subtractions: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(scorer, rm_id, rm_name, month, window_start, window_end,
			 by_operation, by_category, additions, subtractions, excluded_sum,
			 growth_pct, rate_used, audit_mode, config_hash, config_schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Scorer, rec.RMID, rec.RMName, rec.Month, rec.WindowStart, rec.WindowEnd,
		string(byOperation), string(byCategory), string(additions), string(subtractions),
		rec.ExcludedSum, rec.GrowthPct, rec.RateUsed, rec.AuditMode,
		rec.ConfigHash, rec.ConfigSchemaVersion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		rec.ID = id
	}
	return nil
}

// AuditRecords returns the audit trail for one RM and month, oldest first.
func (s *SQLiteStorage) AuditRecords(ctx context.Context, scorer, rmID, month string) ([]model.AuditRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scorer, rm_id, rm_name, month, window_start, window_end,
		       by_operation, by_category, additions, subtractions, excluded_sum,
		       growth_pct, rate_used, audit_mode, config_hash, config_schema_version, created_at
		FROM audit_records
		WHERE scorer = ? AND rm_id = ? AND month = ?
		ORDER BY id`, scorer, rmID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var byOperation, byCategory, additions, subtractions string
		if err := rows.Scan(&rec.ID, &rec.Scorer, &rec.RMID, &rec.RMName, &rec.Month,
			&rec.WindowStart, &rec.WindowEnd, &byOperation, &byCategory,
			&additions, &subtractions, &rec.ExcludedSum, &rec.GrowthPct,
			&rec.RateUsed, &rec.AuditMode, &rec.ConfigHash,
			&rec.ConfigSchemaVersion, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if err := json.Unmarshal([]byte(byOperation), &rec.ByOperation); err != nil {
			return nil, fmt.Errorf("failed to decode operation breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(byCategory), &rec.ByCategory); err != nil {
			return nil, fmt.Errorf("failed to decode category breakdown: %w", err)
		}
		if err := json.Unmarshal([]byte(additions), &rec.Additions); err != nil {
			return nil, fmt.Errorf("failed to decode additions: %w", err)
		}
		if err := json.Unmarshal([]byte(subtractions), &rec.Subtractions); err != nil {
			return nil, fmt.Errorf("failed to decode subtractions: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
