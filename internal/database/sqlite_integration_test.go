package database

import (
	"path/filepath"
	"testing"
	"time"

	"go-bg-daemon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err, "Failed to open database")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteIntegrationHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db := openTestDB(t)
	base := time.Unix(1700000000, 0)

	t.Run("Record and Get", func(t *testing.T) {
		id, err := db.RecordUpdate(models.HistoryEntry{
			RunID:      "6f1c0d2e-7a7b-4c53-9d7e-1b2f3a4c5d6e",
			ImageID:    "abc",
			Title:      "Misty lake",
			Link:       "https://i.imgur.com/abc.jpg",
			Path:       "/home/me/wall.jpg",
			BackupPath: "/home/me/wall-0123456789ab.jpg",
			Status:     models.StatusApplied,
			Timestamp:  base,
		})
		require.NoError(t, err)
		assert.Positive(t, id)

		got, err := db.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "abc", got.ImageID)
		assert.Equal(t, "6f1c0d2e-7a7b-4c53-9d7e-1b2f3a4c5d6e", got.RunID)
		assert.Equal(t, "Misty lake", got.Title)
		assert.Equal(t, models.StatusApplied, got.Status)
		assert.Equal(t, "/home/me/wall-0123456789ab.jpg", got.BackupPath)
		assert.True(t, got.Timestamp.Equal(base))
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := db.Get(9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Recent ordering and limit", func(t *testing.T) {
		_, err := db.RecordUpdate(models.HistoryEntry{ImageID: "def", Status: models.StatusRestored, ErrorDetails: "status 404", Timestamp: base.Add(time.Hour)})
		require.NoError(t, err)
		_, err = db.RecordUpdate(models.HistoryEntry{ImageID: "ghi", Status: models.StatusFailed, Timestamp: base.Add(2 * time.Hour)})
		require.NoError(t, err)

		all, err := db.Recent(0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "ghi", all[0].ImageID)
		assert.Equal(t, "def", all[1].ImageID)
		assert.Equal(t, "status 404", all[1].ErrorDetails)
		assert.Equal(t, "abc", all[2].ImageID)

		two, err := db.Recent(2)
		require.NoError(t, err)
		assert.Len(t, two, 2)
	})

	t.Run("HasImage only counts applied", func(t *testing.T) {
		assert.True(t, db.HasImage("abc"))
		assert.False(t, db.HasImage("def"))
		assert.False(t, db.HasImage("nope"))
	})

	t.Run("Rejects invalid entries", func(t *testing.T) {
		_, err := db.RecordUpdate(models.HistoryEntry{Status: models.StatusApplied})
		assert.Error(t, err)
		_, err = db.RecordUpdate(models.HistoryEntry{ImageID: "x", Status: "Bogus"})
		assert.Error(t, err, "status check constraint")
	})
}

func TestSQLiteDefaultTimestamp(t *testing.T) {
	db := openTestDB(t)
	before := time.Now().Add(-time.Second)

	id, err := db.RecordUpdate(models.HistoryEntry{ImageID: "now", Status: models.StatusApplied})
	require.NoError(t, err)
	got, err := db.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Timestamp.After(before))
}

func TestSQLiteCloseIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.RecordUpdate(models.HistoryEntry{ImageID: "x", Status: models.StatusApplied})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Recent(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, db.HasImage("x"))
}

func TestSQLiteReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.RecordUpdate(models.HistoryEntry{ImageID: "persisted", Status: models.StatusApplied})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, db.HasImage("persisted"))
}
