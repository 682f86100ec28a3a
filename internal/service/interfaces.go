// Package service defines the interfaces the engine depends on, keeping the
// pipeline storage-agnostic.
package service

import (
	"context"
	"time"

	"github.com/iwell/incentive-engine/internal/model"
)

// Storage defines the contract for the persistence layer. Raw input
// collections are read-only to the engine; leaderboard and audit collections
// are write-owned by it.
type Storage interface {
	// Raw inputs (owned by external systems).
	RawRecords(ctx context.Context, op model.Operation, start, end time.Time) ([]model.RawRecord, error)
	AUMStart(ctx context.Context, rmName, month string) (float64, bool, error)
	MeetingCounts(ctx context.Context, start, end time.Time) (map[string]int, error)

	// Identity resolution.
	EmployeeByName(ctx context.Context, name string) (*model.Employee, error)
	EmployeeByAlias(ctx context.Context, alias string) (*model.Employee, error)
	EmployeeByID(ctx context.Context, id string) (*model.Employee, error)

	// Leaderboard output, unique on (scorer, rm_id, month).
	GetMonthlyRecord(ctx context.Context, scorer, rmID, month string) (*model.MonthlyRecord, error)
	UpsertMonthlyRecord(ctx context.Context, rec *model.MonthlyRecord) error
	PeriodTotals(ctx context.Context, scorer, rmID string, months []string) (PeriodTotals, error)
	StreakLength(ctx context.Context, scorer, rmID, month string) (int, error)

	// Audit output, append-only.
	AppendAudit(ctx context.Context, rec *model.AuditRecord) error

	// Configuration documents, one per scorer.
	GetConfigDocument(ctx context.Context, scorer string) (*model.ConfigDocument, error)
	InsertConfigDocument(ctx context.Context, doc *model.ConfigDocument) error

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// PeriodTotals aggregates stored leaderboard rows over a set of months for
// the periodic-bonus gate.
type PeriodTotals struct {
	NetValue       float64
	PositiveMonths int
}

// RunLock is a time-boxed mutual-exclusion lock keyed by scorer name. An
// expired lease may be stolen by the next acquirer.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
