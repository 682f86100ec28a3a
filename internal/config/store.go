package config

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
)

// StatusActive is the only status a document may carry to be used by a run.
const StatusActive = "active"

// Loader fetches, validates, and snapshots scorer configuration from storage.
type Loader struct {
	storage service.Storage
	logger  *slog.Logger
}

// NewLoader creates a config loader backed by storage.
func NewLoader(storage service.Storage, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{storage: storage, logger: logger}
}

// Load returns the validated, hashed config snapshot for a scorer. A missing
// document is bootstrapped from the built-in defaults; any other failure is
// terminal for the run.
func (l *Loader) Load(ctx context.Context, scorer string) (model.ConfigSnapshot, error) {
	if !model.KnownScorer(scorer) {
		return model.ConfigSnapshot{}, common.NewConfigError(scorer, fmt.Errorf("unknown scorer: %w", common.ErrInvalidConfig))
	}

	doc, err := l.storage.GetConfigDocument(ctx, scorer)
	switch {
	case errors.Is(err, common.ErrNotFound):
		doc, err = l.bootstrap(ctx, scorer)
		if err != nil {
			return model.ConfigSnapshot{}, err
		}
	case err != nil:
		return model.ConfigSnapshot{}, common.NewConfigError(scorer, err)
	}

	if doc.Status != "" && doc.Status != StatusActive {
		return model.ConfigSnapshot{}, common.NewConfigError(scorer,
			fmt.Errorf("document status %q: %w", doc.Status, common.ErrMissingConfig))
	}
	if err := Validate(doc); err != nil {
		return model.ConfigSnapshot{}, common.NewConfigError(scorer, fmt.Errorf("%w: %s", common.ErrInvalidConfig, err))
	}

	canonical, hash, err := CanonicalHash(doc)
	if err != nil {
		return model.ConfigSnapshot{}, common.NewConfigError(scorer, err)
	}

	l.logger.InfoContext(ctx, "config loaded",
		"scorer", scorer,
		"schema_version", doc.SchemaVersion,
		"config_hash", hash)

	return model.ConfigSnapshot{
		Doc:       *doc,
		Hash:      hash,
		Canonical: canonical,
		LoadedAt:  time.Now().UTC(),
	}, nil
}

// bootstrap writes the built-in default document for a scorer that has none.
// A concurrent writer winning the insert race is fine; we re-read whatever
// landed.
func (l *Loader) bootstrap(ctx context.Context, scorer string) (*model.ConfigDocument, error) {
	doc := DefaultDocument(scorer)
	l.logger.InfoContext(ctx, "bootstrapping default config", "scorer", scorer)

	err := l.storage.InsertConfigDocument(ctx, &doc)
	if err != nil && !errors.Is(err, common.ErrDuplicateEntry) {
		return nil, common.NewConfigError(scorer, fmt.Errorf("bootstrap: %w", err))
	}
	stored, err := l.storage.GetConfigDocument(ctx, scorer)
	if err != nil {
		return nil, common.NewConfigError(scorer, fmt.Errorf("bootstrap re-read: %w", err))
	}
	return stored, nil
}

// CanonicalHash serializes a document to its canonical form and returns the
// bytes plus their MD5 hex digest. Transient fields (status, timestamps) are
// excluded so that editing workflow churn never changes the hash; two
// documents with identical rule content always hash identically regardless of
// key order in the source JSON.
func CanonicalHash(doc *model.ConfigDocument) ([]byte, string, error) {
	stripped := *doc
	stripped.Status = ""
	stripped.CreatedAt = time.Time{}
	stripped.UpdatedAt = time.Time{}

	raw, err := json.Marshal(&stripped)
	if err != nil {
		return nil, "", fmt.Errorf("canonical marshal: %w", err)
	}
	// Round-trip through a generic map so encoding/json re-emits object keys
	// in sorted order.
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, "", fmt.Errorf("canonical round-trip: %w", err)
	}
	delete(generic, "status")
	delete(generic, "created_at")
	delete(generic, "updated_at")

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, "", fmt.Errorf("canonical re-marshal: %w", err)
	}
	sum := md5.Sum(canonical)
	return canonical, fmt.Sprintf("%x", sum), nil
}
