package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_EmptyHashIsNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// A status update creates the row before any score is recorded.
	require.NoError(t, st.UpdateLeadStatus(ctx, "l1", map[string]any{"status": "replied"}))

	_, found, err := st.GetLeadHash(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLite_StatusOnlyUpdateKeepsStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpdateLeadStatus(ctx, "l1", map[string]any{"status": "escalated"}))
	require.NoError(t, st.UpdateLeadStatus(ctx, "l1", map[string]any{"note": "x", "status": 5}))

	rec, err := st.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "escalated", rec.Status)
	assert.EqualValues(t, 5, rec.Fields["status"])
	assert.Equal(t, "x", rec.Fields["note"])
}

func TestSQLite_ClosedDB(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	_, _, err := st.GetLeadHash(context.Background(), "l1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: get lead hash l1")
}
