package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"devlend/internal/database"
	"devlend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testBooking(id int64) *models.Booking {
	start := time.Date(2030, 4, 1, 10, 0, 0, 0, time.UTC)
	return &models.Booking{
		ID:          id,
		RequesterID: "sub-1",
		StartAt:     start,
		EndAt:       start.Add(2 * time.Hour),
		Status:      models.StatusPending,
		CreatedAt:   start.Add(-time.Hour),
		UpdatedAt:   start.Add(-time.Hour),
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.calls(TaskUpsert) != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.calls(TaskUpsert))
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpdateStatus, testBooking(3)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	if n, _ := client.LLen(ctx, worker.deadLetterKey).Result(); n != 1 {
		t.Fatalf("expected 1 dead letter, got %d", n)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, BookingID: 9, Payload: "{not json"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)

	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{Booking: testBooking(1)}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error without booking")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleSheetTask(ctx, TaskUpdateStatus, sheetTaskPayload{BookingID: 123, Status: models.StatusReturned})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.calls(TaskUpdateStatus) != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.calls(TaskUpdateStatus))
		}
	})

	t.Run("Resync", func(t *testing.T) {
		b := &models.Booking{RequesterID: "u", StartAt: time.Now(), EndAt: time.Now().Add(time.Hour)}
		if err := db.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
		if err := worker.handleSheetTask(ctx, TaskResync, sheetTaskPayload{}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.replaced != 1 {
			t.Fatalf("expected 1 replaced booking, got %d", sheets.replaced)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "nope", sheetTaskPayload{}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestSheetsWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(1)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", testBooking(1)); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("InvalidBooking", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, nil); err == nil {
			t.Fatalf("expected error for missing booking")
		}
		if err := worker.EnqueueTask(ctx, TaskUpsert, &models.Booking{}); err == nil {
			t.Fatalf("expected error for zero booking id")
		}
	})

	t.Run("Resync", func(t *testing.T) {
		if err := worker.EnqueueResync(ctx); err != nil {
			t.Fatalf("enqueue resync: %v", err)
		}
	})
}

func TestSheetsWorker_StartDrainsQueue(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	for i := int64(1); i <= 3; i++ {
		if err := worker.EnqueueTask(ctx, TaskUpsert, testBooking(i)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	completed := func() int {
		var n int
		row := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM sync_queue WHERE status = ?`, models.SyncStatusCompleted)
		if err := row.Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		return n
	}

	deadline := time.Now().Add(3 * time.Second)
	for completed() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if n := completed(); n != 3 {
		t.Fatalf("expected 3 completed tasks, got %d", n)
	}
	if sheets.calls(TaskUpsert) < 3 {
		t.Fatalf("expected 3 upserts, got %d", sheets.calls(TaskUpsert))
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

// Helpers

type fakeSheets struct {
	mu       sync.Mutex
	err      error
	counts   map[string]int
	replaced int
}

func (f *fakeSheets) inc(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[kind]++
	return f.err
}

func (f *fakeSheets) calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[kind]
}

func (f *fakeSheets) UpsertBooking(_ context.Context, _ *models.Booking) error {
	return f.inc(TaskUpsert)
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, _ int64, _ models.BookingStatus) error {
	return f.inc(TaskUpdateStatus)
}

func (f *fakeSheets) ReplaceBookingsSheet(_ context.Context, bookings []models.Booking) error {
	f.mu.Lock()
	f.replaced = len(bookings)
	f.mu.Unlock()
	return f.inc(TaskResync)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 5 || p.NextDelay(1) != 2*time.Second || p.NextDelay(10) != time.Minute {
		t.Fatalf("unexpected default policy: %+v", p)
	}
}
