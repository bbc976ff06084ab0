package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comps-intel/internal/model"
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

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Acme Corp.", "acme_1234abcd")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	res := &model.AnalysisResult{
		SubjectCompany:   "Acme Corp.",
		Type:             model.ResultTypeTransaction,
		Transactions:     []model.TransactionRecord{{Target: "Beta", Acquirer: "Acme"}},
		TransactionCount: 1,
		FilesProcessed:   1,
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, res))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "acme_1234abcd", got.CacheKey)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Beta", got.Result.Transactions[0].Target)
	assert.Equal(t, 1, got.Result.TransactionCount)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "Foo", "foo_00000000")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "storage: auth failure"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "storage: auth failure", got.Error)
	assert.Nil(t, got.Result)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.CompleteRun(ctx, "missing", &model.AnalysisResult{})
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.FailRun(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "Acme", "acme_1")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "Globex", "globex_1")
	require.NoError(t, err)
	c, err := st.CreateRun(ctx, "acme", "acme_2")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.AnalysisResult{Type: model.ResultTypeComparable}))

	all, err := st.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	acme, err := st.ListRuns(ctx, model.RunFilter{SubjectCompany: "ACME"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	running, err := st.ListRuns(ctx, model.RunFilter{Status: model.RunStatusRunning, SubjectCompany: "acme"})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, c.ID, running[0].ID)

	page, err := st.ListRuns(ctx, model.RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
