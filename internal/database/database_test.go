package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"devlend/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func int64Ptr(v int64) *int64 { return &v }

func createResource(t *testing.T, db *DB, label string, status models.ResourceStatus, rate *int64) *models.Resource {
	t.Helper()
	r := &models.Resource{Label: label, Status: status, DailyRate: rate}
	require.NoError(t, db.CreateResource(context.Background(), r))
	return r
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_Error(t *testing.T) {
	// путь указывает на директорию
	_, err := NewDB(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestEnsureBookingNotesColumn(t *testing.T) {
	db := setupTestDB(t)

	// second call hits "duplicate column" and must be ignored
	require.NoError(t, db.ensureBookingNotesColumn())
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ctx := context.Background()
	now := time.Now()

	t.Run("CreateBooking", func(t *testing.T) {
		assert.Error(t, db.CreateBooking(ctx, &models.Booking{StartAt: now, EndAt: now.Add(time.Hour)}))
	})
	t.Run("GetBooking", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 1)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
	t.Run("ListActiveBookings", func(t *testing.T) {
		_, err := db.ListActiveBookings(ctx, now, now.Add(time.Hour), nil)
		assert.Error(t, err)
	})
	t.Run("ApproveBooking", func(t *testing.T) {
		_, err := db.ApproveBooking(ctx, 1, func(*models.Booking, []models.Resource, []models.Booking) (int64, error) {
			return 1, nil
		})
		assert.Error(t, err)
	})
	t.Run("ListResources", func(t *testing.T) {
		_, err := db.ListAvailableResources(ctx)
		assert.Error(t, err)
	})
	t.Run("UpsertUser", func(t *testing.T) {
		_, err := db.UpsertUser(ctx, &models.User{ID: "u1", Email: "a@kaist.ac.kr"})
		assert.Error(t, err)
	})
	t.Run("CreateNotifications", func(t *testing.T) {
		assert.Error(t, db.CreateNotifications(ctx, []models.Notification{{UserID: "u1", Title: "t"}}))
	})
	t.Run("CreateSyncTask", func(t *testing.T) {
		assert.Error(t, db.CreateSyncTask(ctx, &models.SyncTask{}))
	})
}
