package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
)

// GetConfigDocument fetches the rule table for one scorer.
func (s *SQLiteStorage) GetConfigDocument(ctx context.Context, scorer string) (*model.ConfigDocument, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(scorer, "scorer"); err != nil {
		return nil, err
	}

	var payload, status string
	var createdAt, updatedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, status, created_at, updated_at FROM config_documents WHERE scorer = ?`,
		scorer).Scan(&payload, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config document: %w", err)
	}

	var doc model.ConfigDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config document: %w", err)
	}
	doc.Scorer = scorer
	doc.Status = status
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// InsertConfigDocument creates the rule table for a scorer. A scorer that
// already has a document returns ErrDuplicateEntry; use UpdateConfigDocument
// to change an existing one.
func (s *SQLiteStorage) InsertConfigDocument(ctx context.Context, doc *model.ConfigDocument) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("config document cannot be nil")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_documents (scorer, schema_version, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Scorer, doc.SchemaVersion, statusOrActive(doc.Status), string(payload),
		time.Now().UTC(), time.Now().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return common.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert config document: %w", err)
	}
	return nil
}

// UpdateConfigDocument replaces an existing scorer document.
func (s *SQLiteStorage) UpdateConfigDocument(ctx context.Context, doc *model.ConfigDocument) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("config document cannot be nil")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config document: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE config_documents
		SET schema_version = ?, status = ?, payload = ?, updated_at = ?
		WHERE scorer = ?`,
		doc.SchemaVersion, statusOrActive(doc.Status), string(payload),
		time.Now().UTC(), doc.Scorer)
	if err != nil {
		return fmt.Errorf("failed to update config document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func statusOrActive(status string) string {
	if status == "" {
		return "active"
	}
	return status
}
