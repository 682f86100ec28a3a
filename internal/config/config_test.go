package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwell/incentive-engine/internal/common"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/service"
)

// fakeConfigStorage implements only the config portion of service.Storage.
type fakeConfigStorage struct {
	service.Storage
	docs    map[string]*model.ConfigDocument
	inserts int
}

func newFakeConfigStorage() *fakeConfigStorage {
	return &fakeConfigStorage{docs: make(map[string]*model.ConfigDocument)}
}

func (f *fakeConfigStorage) GetConfigDocument(_ context.Context, scorer string) (*model.ConfigDocument, error) {
	doc, ok := f.docs[scorer]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeConfigStorage) InsertConfigDocument(_ context.Context, doc *model.ConfigDocument) error {
	if _, ok := f.docs[doc.Scorer]; ok {
		return common.ErrDuplicateEntry
	}
	copied := *doc
	f.docs[doc.Scorer] = &copied
	f.inserts++
	return nil
}

func TestLoadBootstrapsDefaults(t *testing.T) {
	storage := newFakeConfigStorage()
	loader := NewLoader(storage, nil)

	snap, err := loader.Load(context.Background(), model.ScorerSIP)
	require.NoError(t, err)
	assert.Equal(t, model.ScorerSIP, snap.Doc.Scorer)
	assert.Equal(t, SchemaVersion, snap.Doc.SchemaVersion)
	assert.NotEmpty(t, snap.Hash)
	assert.Equal(t, 1, storage.inserts)

	// Second load reuses the stored document and yields the same hash.
	again, err := loader.Load(context.Background(), model.ScorerSIP)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, again.Hash)
	assert.Equal(t, 1, storage.inserts)
}

func TestLoadRejectsUnknownScorer(t *testing.T) {
	loader := NewLoader(newFakeConfigStorage(), nil)

	_, err := loader.Load(context.Background(), "espresso")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadRejectsInactiveDocument(t *testing.T) {
	storage := newFakeConfigStorage()
	doc := DefaultDocument(model.ScorerLumpsum)
	doc.Status = "draft"
	storage.docs[model.ScorerLumpsum] = &doc

	loader := NewLoader(storage, nil)
	_, err := loader.Load(context.Background(), model.ScorerLumpsum)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestCanonicalHashStableAcrossTransientFields(t *testing.T) {
	a := DefaultDocument(model.ScorerSIP)
	b := DefaultDocument(model.ScorerSIP)
	b.Status = "draft"

	_, hashA, err := CanonicalHash(&a)
	require.NoError(t, err)
	_, hashB, err := CanonicalHash(&b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB, "status must not affect the hash")

	b.RateSlabs[0].Rate = 0.001
	_, hashC, err := CanonicalHash(&b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashC, "rule content must affect the hash")
}

func TestValidateDefaults(t *testing.T) {
	for _, scorer := range []string{model.ScorerSIP, model.ScorerLumpsum, model.ScorerInsurance} {
		doc := DefaultDocument(scorer)
		assert.NoError(t, Validate(&doc), scorer)
	}
}

func TestValidateRejectsBrokenSlabs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc *model.ConfigDocument)
	}{
		{
			name: "rate slab gap",
			mutate: func(doc *model.ConfigDocument) {
				doc.RateSlabs[1].Min = 0.3
			},
		},
		{
			name: "bounded top rate slab",
			mutate: func(doc *model.ConfigDocument) {
				last := len(doc.RateSlabs) - 1
				doc.RateSlabs[last].Max = fptr(10)
			},
		},
		{
			name: "inverted rate slab",
			mutate: func(doc *model.ConfigDocument) {
				doc.RateSlabs[0].Max = fptr(-1)
			},
		},
		{
			name: "meeting slab gap",
			mutate: func(doc *model.ConfigDocument) {
				doc.MeetingSlabs[1].Min = 7
			},
		},
		{
			name: "penalty slabs out of order",
			mutate: func(doc *model.ConfigDocument) {
				doc.Penalty.Slabs[0].MaxGrowthPct = 0.5
			},
		},
		{
			name: "empty rate slabs",
			mutate: func(doc *model.ConfigDocument) {
				doc.RateSlabs = nil
			},
		},
		{
			name: "unknown range mode",
			mutate: func(doc *model.ConfigDocument) {
				doc.Options.RangeMode = "fortnight"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := DefaultDocument(model.ScorerSIP)
			tt.mutate(&doc)
			assert.Error(t, Validate(&doc))
		})
	}
}
