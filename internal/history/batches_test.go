package history

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBatchLifecycle tests creating, filling and finishing a batch
func TestBatchLifecycle(t *testing.T) {
	store := SetupTestStore(t)
	defer CleanupTestStore(t, store)

	batchID, err := store.CreateBatch("/mail/archive", ModeDir)
	require.NoError(t, err)
	assert.Greater(t, batchID, int64(0), "Should return valid batch ID")

	batch, err := store.GetBatch(batchID)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, "/mail/archive", batch.RootPath)
	assert.Equal(t, ModeDir, batch.Mode)
	assert.True(t, batch.StartedAt.Valid, "started_at should be stamped")
	assert.False(t, batch.FinishedAt.Valid, "finished_at should be empty while running")

	// Conversions reference the batch they belong to
	conv := CreateTestConversion("archive/a.eml", "A", "a@test.com")
	conv.BatchID = sql.NullInt64{Int64: batchID, Valid: true}
	id, err := store.Record(conv)
	require.NoError(t, err)

	retrieved, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.True(t, retrieved.BatchID.Valid)
	assert.Equal(t, batchID, retrieved.BatchID.Int64)

	err = store.FinishBatch(batchID, 10, 7, 2, 1)
	require.NoError(t, err)

	batch, err = store.GetBatch(batchID)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, 10, batch.TotalFound)
	assert.Equal(t, 7, batch.Converted)
	assert.Equal(t, 2, batch.Skipped)
	assert.Equal(t, 1, batch.Failed)
	assert.True(t, batch.FinishedAt.Valid, "finished_at should be stamped")
}

// TestFinishMissingBatch tests finishing an unknown batch
func TestFinishMissingBatch(t *testing.T) {
	store := SetupTestStore(t)
	defer CleanupTestStore(t, store)

	err := store.FinishBatch(12345, 0, 0, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch not found")
}

// TestGetMissingBatch tests that unknown batch IDs return nil
func TestGetMissingBatch(t *testing.T) {
	store := SetupTestStore(t)
	defer CleanupTestStore(t, store)

	batch, err := store.GetBatch(99999)
	require.NoError(t, err)
	assert.Nil(t, batch)
}

// TestListBatches tests recency ordering
func TestListBatches(t *testing.T) {
	store := SetupTestStore(t)
	defer CleanupTestStore(t, store)

	id1, err := store.CreateBatch("/mail/one", ModeDir)
	require.NoError(t, err)
	id2, err := store.CreateBatch("/mail/two.mbox", ModeMbox)
	require.NoError(t, err)

	batches, err := store.ListBatches(10)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, id2, batches[0].ID, "Most recent batch should be first")
	assert.Equal(t, ModeMbox, batches[0].Mode)
	assert.Equal(t, id1, batches[1].ID)
}
