package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// EmployeeByName looks an RM up by their canonical name.
func (s *SQLiteStorage) EmployeeByName(ctx context.Context, name string) (*model.Employee, error) {
	return s.employeeWhere(ctx, "name = ?", name)
}

// EmployeeByID looks an RM up by their employee id.
func (s *SQLiteStorage) EmployeeByID(ctx context.Context, id string) (*model.Employee, error) {
	return s.employeeWhere(ctx, "id = ?", id)
}

// EmployeeByAlias resolves a ledger owner string through the alias table.
func (s *SQLiteStorage) EmployeeByAlias(ctx context.Context, alias string) (*model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(alias, "alias"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.name, e.active, e.inactive_since
		FROM rm_aliases a
		JOIN employees e ON e.id = a.employee_id
		WHERE a.alias = ?`, alias)
	return scanEmployee(row)
}

func (s *SQLiteStorage) employeeWhere(ctx context.Context, where string, arg any) (*model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, active, inactive_since FROM employees WHERE `+where, arg)
	return scanEmployee(row)
}

func scanEmployee(row *sql.Row) (*model.Employee, error) {
	var emp model.Employee
	var inactiveSince sql.NullTime

	err := row.Scan(&emp.ID, &emp.Name, &emp.Active, &inactiveSince)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}
	if inactiveSince.Valid {
		t := inactiveSince.Time
		emp.InactiveSince = &t
	}
	return &emp, nil
}

// SaveEmployee inserts or updates an RM master row.
func (s *SQLiteStorage) SaveEmployee(ctx context.Context, emp *model.Employee) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if emp == nil {
		return fmt.Errorf("employee cannot be nil")
	}

	var inactiveSince any
	if emp.InactiveSince != nil {
		inactiveSince = *emp.InactiveSince
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, active, inactive_since)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			inactive_since = excluded.inactive_since`,
		emp.ID, emp.Name, emp.Active, inactiveSince)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// SaveAlias maps an alternate owner spelling to an employee.
func (s *SQLiteStorage) SaveAlias(ctx context.Context, alias, employeeID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO rm_aliases (alias, employee_id) VALUES (?, ?)`,
		alias, employeeID)
	if err != nil {
		return fmt.Errorf("failed to save alias: %w", err)
	}
	return nil
}
