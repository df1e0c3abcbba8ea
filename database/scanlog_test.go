package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "scans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitScanLog(db))
	return db
}

func TestScanLogRecordAndList(t *testing.T) {
	db := newScanDB(t)
	scanLog := &ScanLog{DB: db}

	personID := int64(7)
	score := 84
	require.NoError(t, scanLog.Record("identification", &personID, ScanResultMatched, &score, ""))
	require.NoError(t, scanLog.Record("enrollment", nil, ScanResultFailed, nil, "capture timed out"))

	events, err := ListScanEvents(db, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, "enrollment", events[0].Workflow)
	assert.Equal(t, ScanResultFailed, events[0].Result)
	assert.Nil(t, events[0].PersonID)
	assert.Equal(t, "capture timed out", events[0].Detail)

	assert.Equal(t, "identification", events[1].Workflow)
	require.NotNil(t, events[1].PersonID)
	assert.Equal(t, int64(7), *events[1].PersonID)
	require.NotNil(t, events[1].Score)
	assert.Equal(t, 84, *events[1].Score)
	assert.NotZero(t, events[1].OccurredAt)
}

func TestListScanEventsHonoursLimit(t *testing.T) {
	db := newScanDB(t)
	scanLog := &ScanLog{DB: db}
	for i := 0; i < 5; i++ {
		require.NoError(t, scanLog.Record("identification", nil, ScanResultUnidentified, nil, ""))
	}

	events, err := ListScanEvents(db, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// non-positive limits fall back to the default page size
	events, err = ListScanEvents(db, 0)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}
