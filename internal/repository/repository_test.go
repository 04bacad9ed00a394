package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := common.DefaultConfig().Database
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runs := NewRunRepository(db, nil)

	first, err := runs.Start(ctx, "a.pdf", 10, 4)
	require.NoError(t, err)
	second, err := runs.Start(ctx, "b.pdf", 3, 1)
	require.NoError(t, err)

	require.NoError(t, runs.Finish(ctx, first.ID, RunOutcome{
		Status:      constants.RunStatusCompleted,
		PagesFailed: 1,
		UnifiedPath: "out/unified/x.pdf",
	}))

	list, err := runs.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]*Run{}
	for _, r := range list {
		byID[r.ID.String()] = r
	}
	done := byID[first.ID.String()]
	require.NotNil(t, done)
	assert.Equal(t, constants.RunStatusCompleted, done.Status)
	assert.Equal(t, 1, done.PagesFailed)
	assert.Equal(t, "out/unified/x.pdf", done.UnifiedPath)
	require.NotNil(t, done.FinishedAt)

	running := byID[second.ID.String()]
	require.NotNil(t, running)
	assert.Equal(t, constants.RunStatusRunning, running.Status)
	assert.Nil(t, running.FinishedAt)
}

func TestFinishUnknownRun(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db, nil)
	run, err := runs.Start(context.Background(), "a.pdf", 1, 1)
	require.NoError(t, err)

	other := run.ID
	other[0] ^= 0xff
	assert.Error(t, runs.Finish(context.Background(), other, RunOutcome{Status: constants.RunStatusFailed}))
}

func TestPageUpsertKeepsLatest(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	run, err := NewRunRepository(db, nil).Start(ctx, "a.pdf", 5, 2)
	require.NoError(t, err)

	pages := NewPageRepository(db, nil)
	require.NoError(t, pages.Upsert(ctx, PageRecord{RunID: run.ID, Page: 4, Status: constants.PageStatusQueued}))
	require.NoError(t, pages.Upsert(ctx, PageRecord{RunID: run.ID, Page: 2, Status: constants.PageStatusQueued}))
	require.NoError(t, pages.Upsert(ctx, PageRecord{RunID: run.ID, Page: 4, Status: constants.PageStatusAnalyzed, Activity: "MR101"}))
	require.NoError(t, pages.Upsert(ctx, PageRecord{RunID: run.ID, Page: 2, Status: constants.PageStatusFailed, ErrorKind: "analysis", Error: "bad json"}))

	recs, err := pages.ListByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].Page)
	assert.Equal(t, constants.PageStatusFailed, recs[0].Status)
	assert.Equal(t, "bad json", recs[0].Error)
	assert.Equal(t, 4, recs[1].Page)
	assert.Equal(t, constants.PageStatusAnalyzed, recs[1].Status)
	assert.Equal(t, "MR101", recs[1].Activity)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := common.DefaultConfig().Database
	cfg.Driver = "oracle"
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, common.ErrDatabase)
}
