package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Raw input tables: ledgers, AUM snapshots, meetings",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS ledger_records (
					id TEXT PRIMARY KEY,
					operation TEXT NOT NULL,
					owner_name TEXT,
					category TEXT,
					sub_category TEXT,
					amount REAL NOT NULL DEFAULT 0,
					date DATETIME,
					reconcile_status TEXT,
					validations TEXT,
					fractions TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ledger_records_op_date ON ledger_records(operation, date)`,

				`CREATE TABLE IF NOT EXISTS aum_snapshots (
					month TEXT NOT NULL,
					rm_name TEXT NOT NULL,
					amount REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (month, rm_name)
				)`,

				`CREATE TABLE IF NOT EXISTS meetings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					rm_name TEXT NOT NULL,
					held_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_meetings_rm_date ON meetings(rm_name, held_at)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     2,
		Description: "Identity tables: employees and aliases",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS employees (
					id TEXT PRIMARY KEY,
					name TEXT UNIQUE NOT NULL,
					active INTEGER NOT NULL DEFAULT 1,
					inactive_since DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS rm_aliases (
					alias TEXT PRIMARY KEY,
					employee_id TEXT NOT NULL,
					FOREIGN KEY (employee_id) REFERENCES employees(id)
				)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     3,
		Description: "Leaderboard and audit output tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS leaderboard (
					scorer TEXT NOT NULL,
					rm_id TEXT NOT NULL,
					rm_name TEXT NOT NULL,
					month TEXT NOT NULL,
					aum_start REAL NOT NULL DEFAULT 0,
					additions REAL NOT NULL DEFAULT 0,
					subtractions REAL NOT NULL DEFAULT 0,
					net_value REAL NOT NULL DEFAULT 0,
					growth_pct REAL NOT NULL DEFAULT 0,
					growth_band TEXT,
					rate_used REAL NOT NULL DEFAULT 0,
					base_incentive REAL NOT NULL DEFAULT 0,
					meetings_count INTEGER NOT NULL DEFAULT 0,
					meetings_multiplier REAL NOT NULL DEFAULT 1,
					meetings_band TEXT,
					debt_bonus REAL NOT NULL DEFAULT 0,
					penalty_points REAL NOT NULL DEFAULT 0,
					positive_streak INTEGER NOT NULL DEFAULT 0,
					streak_bonus REAL NOT NULL DEFAULT 0,
					periodic_bonus TEXT,
					final_incentive REAL NOT NULL DEFAULT 0,
					eligible INTEGER NOT NULL DEFAULT 1,
					lifecycle_state TEXT NOT NULL DEFAULT 'mutable',
					config_hash TEXT NOT NULL,
					config_schema_version TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (scorer, rm_id, month)
				)`,
				`CREATE INDEX idx_leaderboard_scorer_month ON leaderboard(scorer, month)`,

				`CREATE TABLE IF NOT EXISTS audit_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					scorer TEXT NOT NULL,
					rm_id TEXT NOT NULL,
					rm_name TEXT NOT NULL,
					month TEXT NOT NULL,
					window_start DATETIME NOT NULL,
					window_end DATETIME NOT NULL,
					by_operation TEXT,
					by_category TEXT,
					additions TEXT,
					subtractions TEXT,
					excluded_sum REAL NOT NULL DEFAULT 0,
					growth_pct REAL NOT NULL DEFAULT 0,
					rate_used REAL NOT NULL DEFAULT 0,
					audit_mode TEXT,
					config_hash TEXT NOT NULL,
					config_schema_version TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_audit_scorer_rm_month ON audit_records(scorer, rm_id, month)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     4,
		Description: "Config documents and run locks",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS config_documents (
					scorer TEXT PRIMARY KEY,
					schema_version TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					payload TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS job_locks (
					key TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					acquired_at DATETIME NOT NULL,
					expires_at DATETIME NOT NULL
				)`,
			}
			return execAll(tx, queries)
		},
	},
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
