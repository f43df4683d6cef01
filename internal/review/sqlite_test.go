package review

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReview(episodeID, reviewerID string) *VerdictReview {
	return &VerdictReview{
		EpisodeID:         episodeID,
		ReviewerID:        reviewerID,
		EngineEligible:    false,
		ClinicianDecision: DecisionAgree,
		ClinicianAgreed:   true,
		PrimaryFailure:    "conservative care timeline insufficient",
		EngineVersion:     "1.0.0",
		Notes:             "timeline clearly short of the minimum",
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	review := sampleReview("ep-100", "rev-1")
	require.NoError(t, store.Save(ctx, review))
	assert.Greater(t, review.ID, int64(0))
	assert.False(t, review.CreatedAt.IsZero())

	got, err := store.Get(ctx, "ep-100", "rev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, review.ID, got.ID)
	assert.Equal(t, DecisionAgree, got.ClinicianDecision)
	assert.True(t, got.ClinicianAgreed)
	assert.Equal(t, "1.0.0", got.EngineVersion)
}

func TestSQLiteStore_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "no-such-episode", "rev-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveUpdatesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleReview("ep-100", "rev-1")
	require.NoError(t, store.Save(ctx, first))

	second := sampleReview("ep-100", "rev-1")
	second.ClinicianDecision = DecisionOverrideEligible
	second.ClinicianAgreed = false
	second.Notes = "timeline documentation was incomplete, not absent"
	require.NoError(t, store.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := store.Get(ctx, "ep-100", "rev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, DecisionOverrideEligible, got.ClinicianDecision)
	assert.False(t, got.ClinicianAgreed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_DistinctReviewersKeepSeparateRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleReview("ep-100", "rev-1")))
	require.NoError(t, store.Save(ctx, sampleReview("ep-100", "rev-2")))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ListPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, sampleReview(fmt.Sprintf("ep-%d", i), "rev-1")))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	tail, err := store.List(ctx, 10, 4)
	require.NoError(t, err)
	assert.Len(t, tail, 1)

	all, err := store.List(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	review := sampleReview("ep-100", "rev-1")
	require.NoError(t, store.Save(ctx, review))
	require.NoError(t, store.Delete(ctx, review.ID))

	got, err := store.Get(ctx, "ep-100", "rev-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	source := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, source.Save(ctx, sampleReview("ep-1", "rev-1")))
	require.NoError(t, source.Save(ctx, sampleReview("ep-2", "rev-1")))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	target := newTestStore(t)
	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	// A second import of the same export is a no-op.
	imported, skipped, err = target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 2, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ImportRejectsMalformedJSON(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}
