package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iwell/incentive-engine/internal/model"
)

// RawRecords returns candidate ledger records for an operation and window.
// Fraction-bearing records are always returned regardless of their own date;
// each fraction carries its own validation timestamps and the caller windows
// them precisely.
func (s *SQLiteStorage) RawRecords(ctx context.Context, op model.Operation, start, end time.Time) ([]model.RawRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !op.Valid() {
		return nil, fmt.Errorf("invalid operation %q", op)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, owner_name, category, sub_category, amount,
		       date, reconcile_status, validations, fractions
		FROM ledger_records
		WHERE operation = ?
		  AND ((date >= ? AND date < ?) OR (fractions IS NOT NULL AND fractions != ''))
		ORDER BY date, id`,
		string(op), start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.RawRecord
	for rows.Next() {
		rec, scanErr := scanRawRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRawRecord(rows *sql.Rows) (model.RawRecord, error) {
	var rec model.RawRecord
	var op string
	var owner, category, subCategory, recon, validations, fractions sql.NullString
	var date sql.NullTime

	err := rows.Scan(&rec.ID, &op, &owner, &category, &subCategory, &rec.Amount,
		&date, &recon, &validations, &fractions)
	if err != nil {
		return rec, fmt.Errorf("failed to scan ledger record: %w", err)
	}

	rec.Operation = model.Operation(op)
	rec.OwnerName = owner.String
	rec.Category = category.String
	rec.SubCategory = subCategory.String
	rec.ReconcileStatus = recon.String
	if date.Valid {
		rec.Date = date.Time
	}
	if validations.String != "" {
		if err := json.Unmarshal([]byte(validations.String), &rec.Validations); err != nil {
			return rec, fmt.Errorf("failed to decode validations for %s: %w", rec.ID, err)
		}
	}
	if fractions.String != "" {
		if err := json.Unmarshal([]byte(fractions.String), &rec.Fractions); err != nil {
			return rec, fmt.Errorf("failed to decode fractions for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// SaveRawRecords inserts or replaces ledger records. Used by the import path
// and tests; the scoring engine itself never writes these tables.
func (s *SQLiteStorage) SaveRawRecords(ctx context.Context, records []model.RawRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ledger_records
			(id, operation, owner_name, category, sub_category, amount,
			 date, reconcile_status, validations, fractions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		validations, marshalErr := marshalOrEmpty(rec.Validations)
		if marshalErr != nil {
			return marshalErr
		}
		fractions, marshalErr := marshalOrEmpty(rec.Fractions)
		if marshalErr != nil {
			return marshalErr
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Operation), rec.OwnerName,
			rec.Category, rec.SubCategory, rec.Amount, rec.Date, rec.ReconcileStatus,
			validations, fractions); err != nil {
			return fmt.Errorf("failed to save ledger record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func marshalOrEmpty(v any) (string, error) {
	switch t := v.(type) {
	case []model.Validation:
		if len(t) == 0 {
			return "", nil
		}
	case []model.Fraction:
		if len(t) == 0 {
			return "", nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger payload: %w", err)
	}
	return string(raw), nil
}

// AUMStart returns the assets-under-management snapshot for an RM at the
// start of a month. The second return reports whether a snapshot exists.
func (s *SQLiteStorage) AUMStart(ctx context.Context, rmName, month string) (float64, bool, error) {
	if err := validateContext(ctx); err != nil {
		return 0, false, err
	}

	var amount float64
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM aum_snapshots WHERE month = ? AND rm_name = ?`,
		month, rmName).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query AUM snapshot: %w", err)
	}
	return amount, true, nil
}

// SaveAUM records a month-start AUM snapshot.
func (s *SQLiteStorage) SaveAUM(ctx context.Context, month, rmName string, amount float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO aum_snapshots (month, rm_name, amount) VALUES (?, ?, ?)`,
		month, rmName, amount)
	if err != nil {
		return fmt.Errorf("failed to save AUM snapshot: %w", err)
	}
	return nil
}

// MeetingCounts returns the number of meetings per RM name held in
// [start, end).
func (s *SQLiteStorage) MeetingCounts(ctx context.Context, start, end time.Time) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rm_name, COUNT(*) FROM meetings
		WHERE held_at >= ? AND held_at < ?
		GROUP BY rm_name`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan meeting count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// SaveMeeting records one client meeting for an RM.
func (s *SQLiteStorage) SaveMeeting(ctx context.Context, rmName string, heldAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (rm_name, held_at) VALUES (?, ?)`, rmName, heldAt)
	if err != nil {
		return fmt.Errorf("failed to save meeting: %w", err)
	}
	return nil
}
